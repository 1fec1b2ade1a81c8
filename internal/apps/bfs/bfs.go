// Package bfs is the engine's reference AutoApp: single-source
// reachability. vdata is 0 (unreached) or 1 (reached) — a one-shot,
// monotone kernel, matching the reference implementation's
// BFSVMap/BFSEMap/kernel_pull_border_vertexes shape, generalized from
// a single-process worked example to the scheduler's
// PEval/IncEval/border-publish contract.
package bfs

import (
	"context"

	"github.com/graphine/graphine/internal/frontier"
	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/internal/pie"
)

// Context carries the BFS parameters: the single global root vertex.
type Context struct {
	RootID graph.VID
}

// App implements pie.AutoApp[Context].
type App struct{}

// reachabilityKernel marks v reached the first time it is touched by a
// reached u. It is idempotent (re-marking a reached vertex is a no-op)
// and monotone (0 -> 1 only, never the reverse), satisfying the
// EdgeMap race-tolerance contract.
func reachabilityKernel() frontier.EdgeKernel {
	return frontier.EdgeKernel{
		C: func(u, v graph.VertexInfo) bool { return u.VData() == 1 },
		F: func(u, v graph.VertexInfo) bool {
			if v.VData() == 1 {
				return false
			}
			v.SetVData(1)
			return true
		},
	}
}

// Init does nothing: every vertex's on-disk vdata already starts at 0
// (unreached), matching the engine's load-time expectation that a
// kernel does not need to re-initialize resident state.
func (App) Init(ctx context.Context, h pie.Handles, c *Context) {}

// PEval runs once per fragment. If the root is resident here, it
// seeds vdata[root]=1 and floods reachability to a fixpoint within the
// fragment. A fragment without the root returns false and goes INERT
// until a border update wakes it.
func (App) PEval(ctx context.Context, h pie.Handles, c *Context) bool {
	rootLocal, ok := h.Fragment.LocalID(c.RootID)
	if !ok {
		return false
	}
	root, ok := h.Fragment.VertexByLocalID(rootLocal)
	if !ok {
		return false
	}
	if root.VData() != 1 {
		root.SetVData(1)
	}

	if err := frontier.RunToFixpoint(ctx, h.Runner, h.Fragment, []graph.VID{rootLocal}, reachabilityKernel()); err != nil {
		return false
	}

	return publishBorder(h)
}

// IncEval pulls the global border table's snapshot (spec's
// snapshot-per-pass resolution), seeds any local vertex whose global
// twin is marked reached there but is not yet reached locally, and
// floods to a fixpoint again.
func (App) IncEval(ctx context.Context, h pie.Handles, c *Context) bool {
	snapshot := h.Messages.GlobalBorderVDATA()

	var seed []graph.VID
	h.Fragment.AllVertexes(func(v graph.VertexInfo) bool {
		if v.VData() == 1 {
			return true
		}
		global, ok := h.Fragment.GlobalID(v.VID)
		if !ok {
			return true
		}
		if snapshot[global] == 1 {
			v.SetVData(1)
			seed = append(seed, v.VID)
		}
		return true
	})

	if len(seed) == 0 {
		return false
	}

	if err := frontier.RunToFixpoint(ctx, h.Runner, h.Fragment, seed, reachabilityKernel()); err != nil {
		return false
	}

	return publishBorder(h)
}

// publishBorder pushes reachability across every dangling out-edge:
// for each resident vertex that is reached and has an out-edge to a
// global id not resident in this fragment, it publishes that global
// id as reached. This is the push counterpart to
// msgmgr.UpdateBorderVertexes's pull model — the dangling edge's
// target lives in another fragment and has no local VertexInfo to
// read a "border vertex's own value" from, so the value pushed is
// computed from the LOCAL endpoint, matching the worked scenario
// where fragment A, without ever holding vertex 3 resident, is the
// one that publishes vertex 3's reached state.
func publishBorder(h pie.Handles) bool {
	published := false
	h.Fragment.AllVertexes(func(v graph.VertexInfo) bool {
		if v.VData() != 1 {
			return true
		}
		for _, nbr := range v.OutEdges {
			if _, resident := h.Fragment.LocalID(nbr); resident {
				continue
			}
			if h.Messages.Publish(nbr, 1, h.Fragment.GID()) {
				published = true
			}
		}
		return true
	})
	return published
}
