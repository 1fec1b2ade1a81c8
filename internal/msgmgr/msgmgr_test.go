package msgmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphine/graphine/internal/graph"
)

func buildBorderFragment(t *testing.T, gid graph.GID, vidByIndex, globalIDByIndex []graph.VID, vdata []graph.VDATA) *graph.Fragment {
	t.Helper()
	n := len(vidByIndex)
	zero := make([]uint32, n)
	offsets := make([]uint32, n+1)
	f, err := graph.NewFragment(gid, vidByIndex, globalIDByIndex, zero, zero, offsets, offsets, nil, nil, vdata)
	require.NoError(t, err)
	return f
}

func TestManager_PublishAndSnapshot(t *testing.T) {
	m := NewManager(2)
	m.RegisterOwner(100, 0)
	m.RegisterOwner(100, 1)

	f := buildBorderFragment(t, 0, []graph.VID{0}, []graph.VID{100}, []graph.VDATA{1})
	changed := m.UpdateBorderVertexes(f, []graph.VID{0})
	assert.True(t, changed)

	snap := m.GlobalBorderVDATA()
	assert.Equal(t, graph.VDATA(1), snap[100])
}

func TestManager_PublishMarksOtherOwnersDirty(t *testing.T) {
	m := NewManager(3)
	m.RegisterOwner(100, 0)
	m.RegisterOwner(100, 1)
	m.RegisterOwner(100, 2)

	f := buildBorderFragment(t, 0, []graph.VID{0}, []graph.VID{100}, []graph.VDATA{1})
	m.UpdateBorderVertexes(f, []graph.VID{0})

	dirty := m.DrainDirty()
	assert.ElementsMatch(t, []graph.GID{1, 2}, dirty)

	// Draining again returns nothing until another publish occurs.
	assert.Empty(t, m.DrainDirty())
}

func TestManager_PublishSameValueIsNoOp(t *testing.T) {
	m := NewManager(2)
	m.RegisterOwner(5, 0)
	m.RegisterOwner(5, 1)

	f := buildBorderFragment(t, 0, []graph.VID{0}, []graph.VID{5}, []graph.VDATA{0})
	changed := m.UpdateBorderVertexes(f, []graph.VID{0})
	assert.False(t, changed, "publishing the already-stored value must not mark anyone dirty")
	assert.Empty(t, m.DrainDirty())
}

func TestManager_SnapshotIsolatedFromLaterPublishes(t *testing.T) {
	m := NewManager(2)
	m.RegisterOwner(1, 0)

	f1 := buildBorderFragment(t, 0, []graph.VID{0}, []graph.VID{1}, []graph.VDATA{1})
	m.UpdateBorderVertexes(f1, []graph.VID{0})

	snap := m.GlobalBorderVDATA()

	f2 := buildBorderFragment(t, 0, []graph.VID{0}, []graph.VID{1}, []graph.VDATA{2})
	m.UpdateBorderVertexes(f2, []graph.VID{0})

	assert.Equal(t, graph.VDATA(1), snap[1], "snapshot taken before the second publish must not see it")
	assert.Equal(t, graph.VDATA(2), m.GlobalBorderVDATA()[1])
}
