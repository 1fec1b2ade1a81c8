// Package frontier implements the VertexMap/EdgeMap data-parallel
// primitives that user kernels compose PEval/IncEval out of. Both take
// a frontier of local vertex ids and produce a new one, partitioning
// the input across the task runner's workers.
package frontier

import (
	"context"

	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/internal/taskrunner"
	"github.com/graphine/graphine/pkg/collections"
)

// Visited is the per-EdgeMap-invocation activation flag array: one
// byte per fragment-local vertex index. A byte, not a bit, so
// concurrent writers racing on the same slot never corrupt a
// neighboring bit — spec's race-tolerance requirement for EdgeMap.
type Visited []byte

var visitedPool = collections.NewSlicePool[byte](1024)

// NewVisited returns a zeroed Visited array sized for fragment f,
// borrowed from a shared pool. Callers must return it with
// ReleaseVisited once the EdgeMap/VertexMap pass that owns it
// completes; nothing outside that pass may retain a reference.
func NewVisited(f *graph.Fragment) Visited {
	sp := visitedPool.Get()
	n := f.NumVertexes()
	if cap(*sp) < n {
		*sp = make([]byte, n)
	} else {
		*sp = (*sp)[:n]
		for i := range *sp {
			(*sp)[i] = 0
		}
	}
	return Visited(*sp)
}

// ReleaseVisited returns a Visited array to the shared pool.
func ReleaseVisited(v Visited) {
	s := []byte(v)
	visitedPool.Put(&s)
}

// testAndSet marks index i visited, reporting whether it was already
// set. It does not need to be atomic in the CAS sense: per spec, a
// plain byte store is race-tolerant and at-most-a-few-duplicate
// enqueues are an accepted consequence of the race, not a correctness
// violation.
func (v Visited) testAndSet(i int) bool {
	if v[i] != 0 {
		return true
	}
	v[i] = 1
	return false
}

// EdgeKernel is a user kernel applied across one directed edge (u, v):
// C is the traversal predicate, F mutates v's vdata and reports
// whether the mutation is "new" (should activate v). F must be
// idempotent and monotone for deterministic results under races.
type EdgeKernel struct {
	C func(u, v graph.VertexInfo) bool
	F func(u, v graph.VertexInfo) bool
}

// VertexKernel is a user kernel applied to a single vertex, used for
// VertexMap's pull-style passes.
type VertexKernel func(v graph.VertexInfo) bool

// EdgeMap runs one round of the EdgeMap primitive: for every vertex u
// in input, visit each out-neighbor v resident in f, apply C then F,
// and collect every v that newly activated into the returned
// frontier. visited is shared across the whole pass (not reset per
// call) so a vertex activates at most once per NewVisited lifetime.
func EdgeMap(ctx context.Context, runner *taskrunner.Runner, f *graph.Fragment, input []graph.VID, visited Visited, k EdgeKernel) ([]graph.VID, error) {
	if len(input) == 0 {
		return nil, nil
	}

	chunkSize := (len(input) + runner.Cores() - 1) / runner.Cores()
	chunks := make([][]graph.VID, runner.Cores())
	err := runner.ParallelFor(ctx, len(input), chunkSize, func(ctx context.Context, start, end int) error {
		local := collections.NewQueue[graph.VID](end - start)
		for i := start; i < end; i++ {
			uLocal := input[i]
			u, ok := f.VertexByLocalID(uLocal)
			if !ok {
				continue
			}
			for _, nbrGlobal := range u.OutEdges {
				vLocal, ok := f.LocalID(nbrGlobal)
				if !ok {
					continue // border edge: neighbor not resident
				}
				vIdx, ok := indexOf(f, vLocal)
				if !ok {
					continue
				}
				if visited[vIdx] != 0 {
					continue
				}
				v, _ := f.VertexByLocalID(vLocal)
				if !k.C(u, v) {
					continue
				}
				if k.F(u, v) {
					if !visited.testAndSet(vIdx) {
						local.Enqueue(vLocal)
					}
				}
			}
		}
		// Each call owns exactly one chunk ordinal (start/chunkSize,
		// since ParallelFor partitions [0,n) into chunks of that exact
		// size): distinct ranges never collide on the same output
		// slot, unlike indexing by start % cores which aliases any
		// two chunk starts congruent mod cores.
		chunkIdx := start / chunkSize
		for {
			val, ok := local.Dequeue()
			if !ok {
				break
			}
			chunks[chunkIdx] = append(chunks[chunkIdx], val)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []graph.VID
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out, nil
}

// VertexMap runs one round of the VertexMap primitive: F is applied to
// every vertex in input directly (no neighbor traversal), typically to
// pull a value from the global border table into a local vdata slot.
// A vertex is included in the output frontier when F returns true.
func VertexMap(ctx context.Context, runner *taskrunner.Runner, f *graph.Fragment, input []graph.VID, visited Visited, k VertexKernel) ([]graph.VID, error) {
	if len(input) == 0 {
		return nil, nil
	}

	chunkSize := (len(input) + runner.Cores() - 1) / runner.Cores()
	chunks := make([][]graph.VID, runner.Cores())
	err := runner.ParallelFor(ctx, len(input), chunkSize, func(ctx context.Context, start, end int) error {
		var local []graph.VID
		for i := start; i < end; i++ {
			vLocal := input[i]
			v, ok := f.VertexByLocalID(vLocal)
			if !ok {
				continue
			}
			idx, ok := indexOf(f, vLocal)
			if !ok {
				continue
			}
			if visited[idx] != 0 {
				continue
			}
			if k(v) {
				if !visited.testAndSet(idx) {
					local = append(local, vLocal)
				}
			}
		}
		chunkIdx := start / chunkSize
		chunks[chunkIdx] = append(chunks[chunkIdx], local...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []graph.VID
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out, nil
}

// RunToFixpoint repeatedly applies EdgeMap until the frontier is
// empty, as the PIE contract's caller loop requires. It is the caller
// kernels use instead of hand-writing the while loop themselves.
func RunToFixpoint(ctx context.Context, runner *taskrunner.Runner, f *graph.Fragment, seed []graph.VID, k EdgeKernel) error {
	visited := NewVisited(f)
	defer ReleaseVisited(visited)

	frontierSlice := seed
	for len(frontierSlice) > 0 {
		next, err := EdgeMap(ctx, runner, f, frontierSlice, visited, k)
		if err != nil {
			return err
		}
		frontierSlice = next
	}
	return nil
}

// indexOf finds the dense index of a local vid by scanning the
// fragment's own lookup, exposed here because Fragment does not expose
// index positions directly outside VertexByIndex/VertexByLocalID.
func indexOf(f *graph.Fragment, local graph.VID) (int, bool) {
	return f.IndexOfLocalID(local)
}
