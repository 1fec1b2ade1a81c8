// Package graph implements the CSR-partitioned fragment: the engine's
// on-memory representation of one partition of vertices and edges.
package graph

import (
	"fmt"
	"math"
	"strings"
)

// VID identifies a vertex, either in fragment-local index space or in
// global space, depending on context. A single fixed-width type is used
// for both, matching the reference implementation's choice to
// instantiate its VID_T template parameter at uint64.
type VID = uint64

// GID identifies a fragment (graph partition).
type GID = int64

// VDATA is the per-vertex mutable payload. Fixed at uint64: wide enough
// for the reference kernels (reachability flags, depths, sums) while
// keeping the on-disk vdata file a flat array of fixed-width words.
type VDATA = uint64

// VIDMax is the sentinel for "no such vertex": all bits set
// (math.MaxUint64). NewFragment skips vidByIndex entries equal to it.
const VIDMax VID = math.MaxUint64

// VDATAMax is the sentinel for "vdata not yet set".
const VDATAMax VDATA = math.MaxUint64

// NoGID marks the absence of an owning fragment.
const NoGID GID = -1

// VertexInfo is a lightweight, non-owning view onto one vertex's
// position in a Fragment: its local id, degrees, neighbor slices and a
// pointer to its mutable vdata slot. A VertexInfo is valid only for the
// lifetime of the Fragment it was produced from; it does not copy the
// underlying edge arrays.
type VertexInfo struct {
	VID        VID
	InDegree   uint32
	OutDegree  uint32
	InEdges    []VID
	OutEdges   []VID
	vdataSlot  *VDATA
}

// VData returns the vertex's current vdata value.
func (v VertexInfo) VData() VDATA {
	return *v.vdataSlot
}

// SetVData overwrites the vertex's vdata value. This is the only
// mutation a kernel may perform on a Fragment: topology arrays are
// write-once at load time.
func (v VertexInfo) SetVData(val VDATA) {
	*v.vdataSlot = val
}

// Fragment is one partition of the graph, held in memory in CSR form.
// All topology slices (vidByIndex, globalIDByIndex, indegree, outdegree,
// inOffset, outOffset, inEdges, outEdges) are write-once: they are
// populated during Load and never mutated afterward. Only vdata changes
// across PEval/IncEval calls.
type Fragment struct {
	gid GID

	numVertexes int
	sumInEdges  int
	sumOutEdges int

	// vidByIndex[i] is the local vertex id stored at position i.
	// indexByVid is its inverse, a dense array sized by the largest
	// local vid for O(1) lookup; a local id beyond its end is treated
	// as not resident.
	vidByIndex      []VID
	indexByVid      []int32 // sized maxLocalVID+1; -1 means absent
	globalIDByIndex []VID

	// localByGlobal and globalByLocal mirror the array-based lookups
	// above but for the full global id space, used to resolve edge
	// endpoints that cross fragment boundaries.
	localByGlobal map[VID]VID
	globalByLocal map[VID]VID

	indegree  []uint32
	outdegree []uint32

	// inOffset and outOffset have numVertexes+1 entries each:
	// inOffset[i+1]-inOffset[i] == indegree[i].
	inOffset  []uint32
	outOffset []uint32

	inEdges  []VID
	outEdges []VID

	vdata []VDATA
}

// NewFragment builds a Fragment from already-decoded CSR arrays. It is
// the shared constructor used by both the CSR IO adapter (loading from
// disk) and tests (building fixtures in memory). It validates the
// invariants the rest of the engine depends on.
func NewFragment(gid GID, vidByIndex, globalIDByIndex []VID, indegree, outdegree, inOffset, outOffset []uint32, inEdges, outEdges []VID, vdata []VDATA) (*Fragment, error) {
	n := len(vidByIndex)
	if len(globalIDByIndex) != n || len(indegree) != n || len(outdegree) != n || len(vdata) != n {
		return nil, fmt.Errorf("graph: fragment %d: per-vertex arrays have inconsistent lengths", gid)
	}
	if len(inOffset) != n+1 || len(outOffset) != n+1 {
		return nil, fmt.Errorf("graph: fragment %d: offset arrays must have numVertexes+1 entries", gid)
	}
	for i := 0; i < n; i++ {
		if inOffset[i+1]-inOffset[i] != indegree[i] {
			return nil, fmt.Errorf("graph: fragment %d: in_offset/indegree mismatch at index %d", gid, i)
		}
		if outOffset[i+1]-outOffset[i] != outdegree[i] {
			return nil, fmt.Errorf("graph: fragment %d: out_offset/outdegree mismatch at index %d", gid, i)
		}
	}
	if int(inOffset[n]) != len(inEdges) {
		return nil, fmt.Errorf("graph: fragment %d: in_offset total does not match len(inEdges)", gid)
	}
	if int(outOffset[n]) != len(outEdges) {
		return nil, fmt.Errorf("graph: fragment %d: out_offset total does not match len(outEdges)", gid)
	}

	f := &Fragment{
		gid:             gid,
		numVertexes:     n,
		sumInEdges:      len(inEdges),
		sumOutEdges:     len(outEdges),
		vidByIndex:      vidByIndex,
		globalIDByIndex: globalIDByIndex,
		indegree:        indegree,
		outdegree:       outdegree,
		inOffset:        inOffset,
		outOffset:       outOffset,
		inEdges:         inEdges,
		outEdges:        outEdges,
		vdata:           vdata,
		localByGlobal:   make(map[VID]VID, n),
		globalByLocal:   make(map[VID]VID, n),
	}

	maxVID := int32(-1)
	for _, vid := range vidByIndex {
		if vid != VIDMax && int32(vid) > maxVID {
			maxVID = int32(vid)
		}
	}
	f.indexByVid = make([]int32, maxVID+1)
	for i := range f.indexByVid {
		f.indexByVid[i] = -1
	}
	for i, vid := range vidByIndex {
		if vid == VIDMax {
			continue
		}
		f.indexByVid[vid] = int32(i)
		f.localByGlobal[globalIDByIndex[i]] = vid
		f.globalByLocal[vid] = globalIDByIndex[i]
	}

	return f, nil
}

// GID returns the fragment's partition id.
func (f *Fragment) GID() GID { return f.gid }

// NumVertexes returns the number of vertices held by this fragment.
func (f *Fragment) NumVertexes() int { return f.numVertexes }

// SumInEdges returns the total number of in-edges across all vertices.
func (f *Fragment) SumInEdges() int { return f.sumInEdges }

// SumOutEdges returns the total number of out-edges across all vertices.
func (f *Fragment) SumOutEdges() int { return f.sumOutEdges }

// VertexByIndex returns a VertexInfo view for the vertex stored at
// dense position i, where 0 <= i < NumVertexes().
func (f *Fragment) VertexByIndex(i int) VertexInfo {
	return VertexInfo{
		VID:       f.vidByIndex[i],
		InDegree:  f.indegree[i],
		OutDegree: f.outdegree[i],
		InEdges:   f.inEdges[f.inOffset[i]:f.inOffset[i+1]],
		OutEdges:  f.outEdges[f.outOffset[i]:f.outOffset[i+1]],
		vdataSlot: &f.vdata[i],
	}
}

// VertexByLocalID returns a VertexInfo view for a local vertex id, or
// ok=false if the fragment holds no such vertex.
func (f *Fragment) VertexByLocalID(local VID) (VertexInfo, bool) {
	if local == VIDMax || int(local) >= len(f.indexByVid) {
		return VertexInfo{}, false
	}
	idx := f.indexByVid[local]
	if idx < 0 {
		return VertexInfo{}, false
	}
	return f.VertexByIndex(int(idx)), true
}

// IndexOfLocalID returns the dense position of a resident local vertex
// id, or ok=false if it is not resident. Callers that need to index a
// parallel per-vertex array (such as a Visited byte array) by vertex
// use this instead of re-deriving the mapping themselves.
func (f *Fragment) IndexOfLocalID(local VID) (int, bool) {
	if local == VIDMax || int(local) >= len(f.indexByVid) {
		return 0, false
	}
	idx := f.indexByVid[local]
	if idx < 0 {
		return 0, false
	}
	return int(idx), true
}

// GlobalID translates a fragment-local vertex id to its global id.
func (f *Fragment) GlobalID(local VID) (VID, bool) {
	g, ok := f.globalByLocal[local]
	return g, ok
}

// LocalID translates a global vertex id to this fragment's local id,
// or ok=false if the vertex is not resident here.
func (f *Fragment) LocalID(global VID) (VID, bool) {
	l, ok := f.localByGlobal[global]
	return l, ok
}

// AllVertexes iterates all resident vertices in dense index order,
// calling fn for each. fn returning false stops the iteration early.
func (f *Fragment) AllVertexes(fn func(VertexInfo) bool) {
	for i := 0; i < f.numVertexes; i++ {
		if !fn(f.VertexByIndex(i)) {
			return
		}
	}
}

// BorderVertices returns the local ids of vertices that have at least
// one neighbor (in either direction) not resident in this fragment.
// Unlike the reference implementation, which scans only in-edges, this
// scans both directions: the border concept is direction-agnostic, and
// an out-edge crossing a fragment boundary equally requires the
// neighboring fragment to learn this vertex's published vdata.
func (f *Fragment) BorderVertices() []VID {
	var border []VID
	f.AllVertexes(func(v VertexInfo) bool {
		for _, nbr := range v.InEdges {
			if _, ok := f.LocalID(nbr); !ok {
				border = append(border, v.VID)
				return true
			}
		}
		for _, nbr := range v.OutEdges {
			if _, ok := f.LocalID(nbr); !ok {
				border = append(border, v.VID)
				return true
			}
		}
		return true
	})
	return border
}

// DebugString renders up to limit vertices for diagnostics. It is not
// part of the core contract; only tests call it.
func (f *Fragment) DebugString(limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fragment gid=%d vertexes=%d in_edges=%d out_edges=%d\n", f.gid, f.numVertexes, f.sumInEdges, f.sumOutEdges)
	n := f.numVertexes
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		v := f.VertexByIndex(i)
		fmt.Fprintf(&sb, "  vid=%d indeg=%d outdeg=%d vdata=%d\n", v.VID, v.InDegree, v.OutDegree, v.VData())
	}
	if limit > 0 && limit < f.numVertexes {
		fmt.Fprintf(&sb, "  ... %d more\n", f.numVertexes-limit)
	}
	return sb.String()
}
