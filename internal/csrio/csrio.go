// Package csrio reads and writes the on-disk CSR fragment bundle: five
// fixed-width binary files per fragment (meta, in_edges, out_edges,
// vdata, localid2globalid), little-endian throughout. The layout is
// grounded on the engine's mmap-backed binary stores, generalized from
// a single growable array to the fixed five-file-per-fragment bundle
// spec requires.
package csrio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/pkg/engineerr"
)

// magic is the meta file's 8-byte signature.
var magic = [8]byte{'M', 'G', 'C', 'S', 'R', 0, 0, 0}

const metaHeaderSize = 32 // magic(8) + gid(8) + num_vertexes(8) + sum_in_edges(4) + sum_out_edges(4)

// Paths returns the five file paths for gid under workspace root ws.
func Paths(ws string, gid graph.GID) (meta, inEdges, outEdges, vdata, localID2Global string) {
	name := fmt.Sprintf("%d.bin", gid)
	return filepath.Join(ws, "meta", name),
		filepath.Join(ws, "in_edges", name),
		filepath.Join(ws, "out_edges", name),
		filepath.Join(ws, "vdata", name),
		filepath.Join(ws, "localid2globalid", name)
}

// ResultPath returns the path the discharge stage writes a fragment's
// final vdata to after fixpoint.
func ResultPath(ws string, gid graph.GID) string {
	return filepath.Join(ws, "result", fmt.Sprintf("%d.vdata.bin", gid))
}

// Read loads one fragment's CSR bundle from disk.
func Read(ws string, gid graph.GID) (*graph.Fragment, error) {
	metaPath, inPath, outPath, vdataPath, l2gPath := Paths(ws, gid)

	metaBytes, err := readAllOrMissing(metaPath, gid)
	if err != nil {
		return nil, err
	}
	if len(metaBytes) < metaHeaderSize {
		return nil, engineerr.NewForGID(engineerr.KindIoTruncated, gid, fmt.Sprintf("meta/%d.bin: header is %d bytes, want at least %d", gid, len(metaBytes), metaHeaderSize))
	}
	if [8]byte(metaBytes[0:8]) != magic {
		return nil, engineerr.NewForGID(engineerr.KindIoBadFormat, gid, fmt.Sprintf("meta/%d.bin: bad magic", gid))
	}
	fileGID := int64(binary.LittleEndian.Uint64(metaBytes[8:16]))
	if fileGID != gid {
		return nil, engineerr.NewForGID(engineerr.KindIoBadFormat, gid, fmt.Sprintf("meta/%d.bin: header gid %d does not match filename", gid, fileGID))
	}
	numVertexes := binary.LittleEndian.Uint64(metaBytes[16:24])
	sumInEdges := binary.LittleEndian.Uint32(metaBytes[24:28])
	sumOutEdges := binary.LittleEndian.Uint32(metaBytes[28:32])

	n := int(numVertexes)
	wantLen := metaHeaderSize + 4*n*8 // indegree, outdegree, in_offset, out_offset, 8 bytes each
	if len(metaBytes) != wantLen {
		return nil, engineerr.NewForGID(engineerr.KindIoBadFormat, gid, fmt.Sprintf("meta/%d.bin: length %d does not match header (want %d for %d vertexes)", gid, len(metaBytes), wantLen, n))
	}

	body := metaBytes[metaHeaderSize:]
	indegree := readUint32Array(body[0*n*8:1*n*8], n)
	outdegree := readUint32Array(body[1*n*8:2*n*8], n)
	inOffsetBody := readUint32Array(body[2*n*8:3*n*8], n)
	outOffsetBody := readUint32Array(body[3*n*8:4*n*8], n)

	inOffset := make([]uint32, n+1)
	copy(inOffset, inOffsetBody)
	inOffset[n] = sumInEdges

	outOffset := make([]uint32, n+1)
	copy(outOffset, outOffsetBody)
	outOffset[n] = sumOutEdges

	inEdgesBytes, err := readAllOrMissing(inPath, gid)
	if err != nil {
		return nil, err
	}
	inEdges, err := readVIDArray(inEdgesBytes, int(sumInEdges), gid, "in_edges")
	if err != nil {
		return nil, err
	}

	outEdgesBytes, err := readAllOrMissing(outPath, gid)
	if err != nil {
		return nil, err
	}
	outEdges, err := readVIDArray(outEdgesBytes, int(sumOutEdges), gid, "out_edges")
	if err != nil {
		return nil, err
	}

	vdataBytes, err := readAllOrMissing(vdataPath, gid)
	if err != nil {
		return nil, err
	}
	vdata, err := readVIDArray(vdataBytes, n, gid, "vdata")
	if err != nil {
		return nil, err
	}

	l2gBytes, err := readAllOrMissing(l2gPath, gid)
	if err != nil {
		return nil, err
	}
	if len(l2gBytes) != n*16 {
		return nil, engineerr.NewForGID(engineerr.KindIoBadFormat, gid, fmt.Sprintf("localid2globalid/%d.bin: length %d does not match %d vertexes", gid, len(l2gBytes), n))
	}
	vidByIndex := make([]graph.VID, n)
	globalIDByIndex := make([]graph.VID, n)
	for i := 0; i < n; i++ {
		vidByIndex[i] = binary.LittleEndian.Uint64(l2gBytes[i*16 : i*16+8])
		globalIDByIndex[i] = binary.LittleEndian.Uint64(l2gBytes[i*16+8 : i*16+16])
	}

	return graph.NewFragment(gid, vidByIndex, globalIDByIndex, indegree, outdegree, inOffset, outOffset, inEdges, outEdges, vdata)
}

// ReadGlobalIDs reads only the localid2globalid bundle for gid and
// returns the global ids it holds resident, without materializing the
// full Fragment. The scheduler uses this to pre-register every GID's
// border ownership before any compute pass runs, closing the race a
// lazy load-time registration would leave: a publish that lands before
// the owning fragment has loaded must still find that owner in the
// table.
func ReadGlobalIDs(ws string, gid graph.GID) ([]graph.VID, error) {
	_, _, _, _, l2gPath := Paths(ws, gid)
	l2gBytes, err := readAllOrMissing(l2gPath, gid)
	if err != nil {
		return nil, err
	}
	if len(l2gBytes)%16 != 0 {
		return nil, engineerr.NewForGID(engineerr.KindIoBadFormat, gid, fmt.Sprintf("localid2globalid/%d.bin: length %d is not a multiple of 16", gid, len(l2gBytes)))
	}
	n := len(l2gBytes) / 16
	out := make([]graph.VID, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint64(l2gBytes[i*16+8 : i*16+16])
	}
	return out, nil
}

// DiscoverGIDs lists every fragment present in workspace ws by scanning
// the meta/ directory for <gid>.bin entries, so the CLI can run an
// entire partitioned workspace without the caller naming each GID.
func DiscoverGIDs(ws string) ([]graph.GID, error) {
	metaDir := filepath.Join(ws, "meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		if isNotExist(err) {
			return nil, engineerr.New(engineerr.KindIoMissing, fmt.Sprintf("workspace %s: no meta/ directory", ws))
		}
		return nil, engineerr.Wrap(engineerr.KindIoMissing, engineerr.NoGID, "reading meta/", err)
	}

	gids := make([]graph.GID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".bin" {
			continue
		}
		gid, err := strconv.ParseInt(name[:len(name)-len(ext)], 10, 64)
		if err != nil {
			continue
		}
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return gids, nil
}

// Write persists one fragment's CSR bundle to disk, creating the five
// directories under ws if they do not already exist.
func Write(ws string, f *graph.Fragment) error {
	for _, dir := range []string{"meta", "in_edges", "out_edges", "vdata", "localid2globalid"} {
		if err := os.MkdirAll(filepath.Join(ws, dir), 0o755); err != nil {
			return engineerr.Wrap(engineerr.KindIoWriteFailed, f.GID(), fmt.Sprintf("mkdir %s", dir), err)
		}
	}
	metaPath, inPath, outPath, vdataPath, l2gPath := Paths(ws, f.GID())

	n := f.NumVertexes()
	meta := make([]byte, metaHeaderSize+4*n*8)
	copy(meta[0:8], magic[:])
	binary.LittleEndian.PutUint64(meta[8:16], uint64(f.GID()))
	binary.LittleEndian.PutUint64(meta[16:24], uint64(n))
	binary.LittleEndian.PutUint32(meta[24:28], uint32(f.SumInEdges()))
	binary.LittleEndian.PutUint32(meta[28:32], uint32(f.SumOutEdges()))

	body := meta[metaHeaderSize:]
	for i := 0; i < n; i++ {
		v := f.VertexByIndex(i)
		binary.LittleEndian.PutUint64(body[(0*n+i)*8:], uint64(v.InDegree))
		binary.LittleEndian.PutUint64(body[(1*n+i)*8:], uint64(v.OutDegree))
	}
	writeOffsets(body[2*n*8:3*n*8], f, true)
	writeOffsets(body[3*n*8:4*n*8], f, false)

	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		return engineerr.Wrap(engineerr.KindIoWriteFailed, f.GID(), "meta", err)
	}

	inEdges := make([]byte, f.SumInEdges()*8)
	outEdges := make([]byte, f.SumOutEdges()*8)
	vdata := make([]byte, n*8)
	l2g := make([]byte, n*16)

	inPos, outPos := 0, 0
	for i := 0; i < n; i++ {
		v := f.VertexByIndex(i)
		for _, nbr := range v.InEdges {
			binary.LittleEndian.PutUint64(inEdges[inPos:], nbr)
			inPos += 8
		}
		for _, nbr := range v.OutEdges {
			binary.LittleEndian.PutUint64(outEdges[outPos:], nbr)
			outPos += 8
		}
		binary.LittleEndian.PutUint64(vdata[i*8:], v.VData())
		global, _ := f.GlobalID(v.VID)
		binary.LittleEndian.PutUint64(l2g[i*16:], v.VID)
		binary.LittleEndian.PutUint64(l2g[i*16+8:], global)
	}

	for path, data := range map[string][]byte{inPath: inEdges, outPath: outEdges, vdataPath: vdata, l2gPath: l2g} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return engineerr.Wrap(engineerr.KindIoWriteFailed, f.GID(), filepath.Base(path), err)
		}
	}
	return nil
}

// WriteResult writes the fragment's final vdata array to
// result/<gid>.vdata.bin, the output the discharge stage produces once
// a fragment reaches fixpoint.
func WriteResult(ws string, f *graph.Fragment) error {
	if err := os.MkdirAll(filepath.Join(ws, "result"), 0o755); err != nil {
		return engineerr.Wrap(engineerr.KindIoWriteFailed, f.GID(), "mkdir result", err)
	}
	n := f.NumVertexes()
	data := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(data[i*8:], f.VertexByIndex(i).VData())
	}
	path := ResultPath(ws, f.GID())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return engineerr.Wrap(engineerr.KindIoWriteFailed, f.GID(), "result", err)
	}
	return nil
}

func writeOffsets(dst []byte, f *graph.Fragment, in bool) {
	offsets := prefixSum(f, in)
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(dst[i*8:], uint64(off))
	}
}

func prefixSum(f *graph.Fragment, in bool) []uint32 {
	n := f.NumVertexes()
	out := make([]uint32, n)
	var running uint32
	for i := 0; i < n; i++ {
		out[i] = running
		v := f.VertexByIndex(i)
		if in {
			running += v.InDegree
		} else {
			running += v.OutDegree
		}
	}
	return out
}

func readAllOrMissing(path string, gid graph.GID) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if isNotExist(err) {
			return nil, engineerr.NewForGID(engineerr.KindIoMissing, gid, fmt.Sprintf("%s not found", filepath.Base(path)))
		}
		return nil, engineerr.Wrap(engineerr.KindIoMissing, gid, filepath.Base(path), err)
	}
	return data, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func readUint32Array(data []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = uint32(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return out
}

func readVIDArray(data []byte, n int, gid graph.GID, name string) ([]graph.VID, error) {
	if len(data) != n*8 {
		return nil, engineerr.NewForGID(engineerr.KindIoTruncated, gid, fmt.Sprintf("%s/%d.bin: length %d does not match expected %d entries", name, gid, len(data), n))
	}
	out := make([]graph.VID, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint64(data[i*8 : i*8+8])
	}
	return out, nil
}
