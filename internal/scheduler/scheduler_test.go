package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphine/graphine/internal/apps/bfs"
	"github.com/graphine/graphine/internal/csrio"
	"github.com/graphine/graphine/internal/datamgr"
	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/internal/msgmgr"
	"github.com/graphine/graphine/pkg/enginelog"
)

// writeChain writes a single-fragment 4-vertex chain 1->2->3->4 (global
// ids) to ws under gid.
func writeChain(t *testing.T, ws string, gid graph.GID) {
	t.Helper()
	vidByIndex := []graph.VID{0, 1, 2, 3}
	globalIDByIndex := []graph.VID{1, 2, 3, 4}
	indegree := []uint32{0, 1, 1, 1}
	outdegree := []uint32{1, 1, 1, 0}
	inOffset := []uint32{0, 0, 1, 2, 3}
	outOffset := []uint32{0, 1, 2, 3, 3}
	inEdges := []graph.VID{1, 2, 3}
	outEdges := []graph.VID{2, 3, 4}
	vdata := []graph.VDATA{0, 0, 0, 0}

	f, err := graph.NewFragment(gid, vidByIndex, globalIDByIndex, indegree, outdegree, inOffset, outOffset, inEdges, outEdges, vdata)
	require.NoError(t, err)
	require.NoError(t, csrio.Write(ws, f))
}

// writeSplitPair writes two fragments sharing a border: A holds global
// {1,2} with a dangling out-edge 2->3; B holds global {3,4} with the
// edge 3->4.
func writeSplitPair(t *testing.T, ws string) {
	t.Helper()

	aVidByIndex := []graph.VID{0, 1}
	aGlobalIDByIndex := []graph.VID{1, 2}
	aIndegree := []uint32{0, 1}
	aOutdegree := []uint32{1, 1}
	aInOffset := []uint32{0, 0, 1}
	aOutOffset := []uint32{0, 1, 2}
	aInEdges := []graph.VID{1}
	aOutEdges := []graph.VID{2, 3}
	aVdata := []graph.VDATA{0, 0}

	fa, err := graph.NewFragment(0, aVidByIndex, aGlobalIDByIndex, aIndegree, aOutdegree, aInOffset, aOutOffset, aInEdges, aOutEdges, aVdata)
	require.NoError(t, err)
	require.NoError(t, csrio.Write(ws, fa))

	bVidByIndex := []graph.VID{0, 1}
	bGlobalIDByIndex := []graph.VID{3, 4}
	bIndegree := []uint32{0, 1}
	bOutdegree := []uint32{1, 0}
	bInOffset := []uint32{0, 0, 1}
	bOutOffset := []uint32{0, 1, 1}
	bInEdges := []graph.VID{3}
	bOutEdges := []graph.VID{4}
	bVdata := []graph.VDATA{0, 0}

	fb, err := graph.NewFragment(1, bVidByIndex, bGlobalIDByIndex, bIndegree, bOutdegree, bInOffset, bOutOffset, bInEdges, bOutEdges, bVdata)
	require.NoError(t, err)
	require.NoError(t, csrio.Write(ws, fb))
}

func runWithTimeout(t *testing.T, s *Scheduler[bfs.Context]) (Report, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Run(ctx)
}

func TestScheduler_SingleFragment_ReachesFixpoint(t *testing.T) {
	ws := t.TempDir()
	writeChain(t, ws, 0)

	dm := datamgr.New(ws)
	mm := msgmgr.NewManager(1)
	app := bfs.App{}
	c := &bfs.Context{RootID: 1}

	s := New[bfs.Context](Config{NumLoadWorkers: 1, NumComputeWorkers: 1, NumDischargeWorkers: 1, NumCores: 2, BufferSize: 1}, dm, mm, app, c, enginelog.NullLogger{}, []graph.GID{0})

	report, err := runWithTimeout(t, s)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.FragmentEpochs[0])

	got, err := csrio.Read(ws, 0)
	require.NoError(t, err)
	for i := 0; i < got.NumVertexes(); i++ {
		assert.Equal(t, graph.VDATA(1), got.VertexByIndex(i).VData())
	}
}

func TestScheduler_TwoFragments_BorderPropagates(t *testing.T) {
	ws := t.TempDir()
	writeSplitPair(t, ws)

	dm := datamgr.New(ws)
	mm := msgmgr.NewManager(2)
	app := bfs.App{}
	c := &bfs.Context{RootID: 1}

	s := New[bfs.Context](Config{NumLoadWorkers: 2, NumComputeWorkers: 2, NumDischargeWorkers: 2, NumCores: 2, BufferSize: 2}, dm, mm, app, c, enginelog.NullLogger{}, []graph.GID{0, 1})

	_, err := runWithTimeout(t, s)
	require.NoError(t, err)

	fa, err := csrio.Read(ws, 0)
	require.NoError(t, err)
	assert.Equal(t, graph.VDATA(1), fa.VertexByIndex(0).VData())
	assert.Equal(t, graph.VDATA(1), fa.VertexByIndex(1).VData())

	fb, err := csrio.Read(ws, 1)
	require.NoError(t, err)
	assert.Equal(t, graph.VDATA(1), fb.VertexByIndex(0).VData())
	assert.Equal(t, graph.VDATA(1), fb.VertexByIndex(1).VData())
}

func TestScheduler_BufferSmallerThanFragmentCount(t *testing.T) {
	ws := t.TempDir()
	for gid := graph.GID(0); gid < 5; gid++ {
		writeChain(t, ws, gid)
	}

	dm := datamgr.New(ws)
	mm := msgmgr.NewManager(5)
	app := bfs.App{}
	c := &bfs.Context{RootID: 1}

	gids := []graph.GID{0, 1, 2, 3, 4}
	s := New[bfs.Context](Config{NumLoadWorkers: 2, NumComputeWorkers: 2, NumDischargeWorkers: 2, NumCores: 2, BufferSize: 2}, dm, mm, app, c, enginelog.NullLogger{}, gids)

	report, err := runWithTimeout(t, s)
	require.NoError(t, err)
	for _, gid := range gids {
		assert.Greater(t, report.FragmentEpochs[gid], uint64(0), "gid %d should have run at least once", gid)
	}
}

func TestScheduler_RootAbsentEverywhere_StillReachesFixpoint(t *testing.T) {
	ws := t.TempDir()
	writeSplitPair(t, ws)

	dm := datamgr.New(ws)
	mm := msgmgr.NewManager(2)
	app := bfs.App{}
	c := &bfs.Context{RootID: 99}

	s := New[bfs.Context](Config{NumLoadWorkers: 1, NumComputeWorkers: 1, NumDischargeWorkers: 1, NumCores: 1, BufferSize: 2}, dm, mm, app, c, enginelog.NullLogger{}, []graph.GID{0, 1})

	_, err := runWithTimeout(t, s)
	require.NoError(t, err)

	fa, err := csrio.Read(ws, 0)
	require.NoError(t, err)
	for i := 0; i < fa.NumVertexes(); i++ {
		assert.Equal(t, graph.VDATA(0), fa.VertexByIndex(i).VData())
	}
}
