// Package msgmgr implements the border-vertex message manager: the
// cross-fragment publish/subscribe table that lets one fragment's
// compute pass wake another's. It is grounded on the engine's
// AtomicBitset (collections.AtomicBitset) for the lock-free owner and
// dirty sets, generalized from a single flat bitset to a per-vertex
// table of them.
package msgmgr

import (
	"sync"
	"sync/atomic"

	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/pkg/collections"
)

// borderEntry holds one border vertex's latest consensus vdata and the
// set of GIDs that own a resident copy of it.
type borderEntry struct {
	vdata  atomic.Uint64
	owners *collections.AtomicBitset
}

// Manager is the border-vertex message table described in the engine's
// scheduling contract: border_vdata maps a global vertex id to its
// latest published value; border_owners maps it to the set of
// fragments holding a resident copy of that vertex; a dirty set tracks
// which fragments must be re-scheduled because a value they depend on
// changed since their last pass.
//
// Manager is safe for concurrent use: entries are created lazily under
// a lock, but the hot path (publishing/reading an existing entry's
// vdata) only touches the entry's own atomic, never the table lock.
type Manager struct {
	mu      sync.RWMutex
	entries map[graph.VID]*borderEntry

	numFragments int
	dirty        *collections.AtomicBitset
}

// NewManager creates a message manager for a run with numFragments
// fragments (GIDs are assumed dense, 0..numFragments-1, matching the
// workspace's meta/<gid>.bin naming).
func NewManager(numFragments int) *Manager {
	return &Manager{
		entries:      make(map[graph.VID]*borderEntry),
		numFragments: numFragments,
		dirty:        collections.NewAtomicBitset(numFragments),
	}
}

func (m *Manager) entryFor(global graph.VID, createIfMissing bool) *borderEntry {
	m.mu.RLock()
	e, ok := m.entries[global]
	m.mu.RUnlock()
	if ok {
		return e
	}
	if !createIfMissing {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[global]; ok {
		return e
	}
	e = &borderEntry{owners: collections.NewAtomicBitset(m.numFragments)}
	m.entries[global] = e
	return e
}

// RegisterOwner records that fragment gid holds a resident copy of
// global. The scheduler calls it for every resident vertex of every
// fragment before any worker starts.
func (m *Manager) RegisterOwner(global graph.VID, gid graph.GID) {
	e := m.entryFor(global, true)
	e.owners.Set(int(gid))
}

// UpdateBorderVertexes scans a fragment's border vertices after a
// compute pass and publishes any whose vdata differs from the table's
// current value. Every other owning GID is marked dirty so the
// scheduler re-admits those fragments. Returns true if anything was
// published.
func (m *Manager) UpdateBorderVertexes(f *graph.Fragment, borderLocals []graph.VID) bool {
	published := false
	for _, local := range borderLocals {
		v, ok := f.VertexByLocalID(local)
		if !ok {
			continue
		}
		global, ok := f.GlobalID(local)
		if !ok {
			continue
		}
		if m.publish(global, v.VData(), f.GID()) {
			published = true
		}
	}
	return published
}

// Publish writes newVal for the global vertex id directly, marking
// every other owning fragment dirty. Unlike UpdateBorderVertexes
// (which publishes a resident border vertex under its own global id,
// a pull model for apps where other fragments hold dangling edges
// into this vertex), Publish lets a kernel push a computed value
// under an arbitrary key — the shape a dangling out-edge's push-style
// propagation needs, since the target vertex is not resident here and
// has no VertexInfo to read a "global id" from.
func (m *Manager) Publish(global graph.VID, newVal graph.VDATA, fromGID graph.GID) bool {
	return m.publish(global, newVal, fromGID)
}

// publish writes newVal for global if it differs from the stored
// value, marking every other owning fragment dirty. It is idempotent:
// publishing the same value twice does nothing.
func (m *Manager) publish(global graph.VID, newVal graph.VDATA, fromGID graph.GID) bool {
	e := m.entryFor(global, true)
	for {
		old := e.vdata.Load()
		if old == newVal {
			return false
		}
		if e.vdata.CompareAndSwap(old, newVal) {
			break
		}
	}
	owners := e.owners.Slice()
	changed := false
	for _, gid := range owners {
		if graph.GID(gid) == fromGID {
			continue
		}
		m.dirty.Set(gid)
		changed = true
	}
	return changed
}

// GlobalBorderVDATA returns a read-only snapshot of the border table:
// global vid -> latest published vdata. IncEval must take this
// snapshot once at the start of its pass (spec's snapshot-per-pass
// resolution): later publications, including ones made by the pass
// currently consuming the snapshot, are visible only on the next
// epoch.
func (m *Manager) GlobalBorderVDATA() map[graph.VID]graph.VDATA {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[graph.VID]graph.VDATA, len(m.entries))
	for global, e := range m.entries {
		snap[global] = graph.VDATA(e.vdata.Load())
	}
	return snap
}

// MarkDirty flags gid as having an unread border update without
// touching any vdata. The scheduler uses this to re-arm a GID it
// drained from the dirty set but could not immediately re-dispatch
// (the fragment was still mid-flight), so the signal is not lost —
// it resurfaces on the next drain once that fragment settles.
func (m *Manager) MarkDirty(gid graph.GID) {
	m.dirty.Set(int(gid))
}

// DrainDirty atomically returns the set of fragments marked dirty
// since the last call and clears it. The scheduler re-dispatches each
// returned GID that is idle or inert, so it runs at least one more
// IncEval, and re-marks dirty any returned GID still in flight.
func (m *Manager) DrainDirty() []graph.GID {
	raw := m.dirty.DrainSet()
	out := make([]graph.GID, len(raw))
	for i, gid := range raw {
		out[i] = graph.GID(gid)
	}
	return out
}

// DirtyCount reports the size of the dirty set without draining it,
// for read-only status reporting (internal/engine/rpc's EngineStatus).
func (m *Manager) DirtyCount() int {
	return len(m.dirty.Slice())
}
