package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain builds a 4-vertex fragment 0->1->2->3, all vertices local,
// global ids equal to local ids (no border).
func buildChain(t *testing.T) *Fragment {
	t.Helper()
	vidByIndex := []VID{0, 1, 2, 3}
	globalIDByIndex := []VID{0, 1, 2, 3}
	indegree := []uint32{0, 1, 1, 1}
	outdegree := []uint32{1, 1, 1, 0}
	inOffset := []uint32{0, 0, 1, 2, 3}
	outOffset := []uint32{0, 1, 2, 3, 3}
	inEdges := []VID{0, 1, 2}
	outEdges := []VID{1, 2, 3}
	vdata := []VDATA{1, 0, 0, 0}

	f, err := NewFragment(0, vidByIndex, globalIDByIndex, indegree, outdegree, inOffset, outOffset, inEdges, outEdges, vdata)
	require.NoError(t, err)
	return f
}

func TestNewFragment_Invariants(t *testing.T) {
	f := buildChain(t)
	assert.Equal(t, 4, f.NumVertexes())
	assert.Equal(t, 3, f.SumInEdges())
	assert.Equal(t, 3, f.SumOutEdges())
}

func TestNewFragment_RejectsOffsetMismatch(t *testing.T) {
	_, err := NewFragment(0,
		[]VID{0, 1}, []VID{0, 1},
		[]uint32{0, 1}, []uint32{1, 0},
		[]uint32{0, 0, 5}, []uint32{0, 1, 1}, // wrong: in_offset[2]-in_offset[1] = 5 != indegree[1]=1
		[]VID{0}, []VID{1},
		[]VDATA{0, 0},
	)
	assert.Error(t, err)
}

func TestFragment_VertexByIndex(t *testing.T) {
	f := buildChain(t)
	v1 := f.VertexByIndex(1)
	assert.Equal(t, VID(1), v1.VID)
	assert.Equal(t, uint32(1), v1.InDegree)
	assert.Equal(t, uint32(1), v1.OutDegree)
	assert.Equal(t, []VID{0}, v1.InEdges)
	assert.Equal(t, []VID{2}, v1.OutEdges)
	assert.Equal(t, VDATA(0), v1.VData())

	v1.SetVData(7)
	assert.Equal(t, VDATA(7), f.VertexByIndex(1).VData())
}

func TestFragment_VertexByLocalID(t *testing.T) {
	f := buildChain(t)
	v, ok := f.VertexByLocalID(2)
	require.True(t, ok)
	assert.Equal(t, VID(2), v.VID)

	_, ok = f.VertexByLocalID(99)
	assert.False(t, ok)

	_, ok = f.VertexByLocalID(VIDMax)
	assert.False(t, ok)
}

func TestFragment_GlobalLocalRoundTrip(t *testing.T) {
	f := buildChain(t)
	for local := VID(0); local < 4; local++ {
		global, ok := f.GlobalID(local)
		require.True(t, ok)
		backToLocal, ok := f.LocalID(global)
		require.True(t, ok)
		assert.Equal(t, local, backToLocal)
	}
}

func TestFragment_AllVertexes(t *testing.T) {
	f := buildChain(t)
	var seen []VID
	f.AllVertexes(func(v VertexInfo) bool {
		seen = append(seen, v.VID)
		return true
	})
	assert.Equal(t, []VID{0, 1, 2, 3}, seen)
}

func TestFragment_AllVertexes_EarlyStop(t *testing.T) {
	f := buildChain(t)
	var seen []VID
	f.AllVertexes(func(v VertexInfo) bool {
		seen = append(seen, v.VID)
		return v.VID < 1
	})
	assert.Equal(t, []VID{0, 1}, seen)
}

func TestFragment_BorderVertices_NoBorder(t *testing.T) {
	f := buildChain(t)
	assert.Empty(t, f.BorderVertices())
}

func TestFragment_BorderVertices_WithCrossingEdge(t *testing.T) {
	// Vertex 0 has an out-edge to global vertex 99, not resident here.
	vidByIndex := []VID{0, 1}
	globalIDByIndex := []VID{100, 101}
	indegree := []uint32{0, 1}
	outdegree := []uint32{2, 0}
	inOffset := []uint32{0, 0, 1}
	outOffset := []uint32{0, 2, 2}
	inEdges := []VID{100}
	outEdges := []VID{101, 99}
	vdata := []VDATA{0, 0}

	f, err := NewFragment(1, vidByIndex, globalIDByIndex, indegree, outdegree, inOffset, outOffset, inEdges, outEdges, vdata)
	require.NoError(t, err)

	border := f.BorderVertices()
	assert.Equal(t, []VID{0}, border)
}

func TestFragment_DebugString(t *testing.T) {
	f := buildChain(t)
	s := f.DebugString(2)
	assert.Contains(t, s, "gid=0")
	assert.Contains(t, s, "2 more")
}
