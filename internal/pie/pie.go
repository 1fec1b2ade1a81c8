// Package pie defines the AutoApp contract user kernels implement, and
// the wrapper that injects a fragment, a task runner, and the message
// manager into every call.
package pie

import (
	"context"

	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/internal/msgmgr"
	"github.com/graphine/graphine/internal/taskrunner"
)

// Handles bundles the three resources the scheduler injects into a
// user kernel call: the resident fragment, a task runner scoped to
// num_cores, and the shared cross-fragment message manager.
type Handles struct {
	Fragment *graph.Fragment
	Runner   *taskrunner.Runner
	Messages *msgmgr.Manager
}

// AutoApp is the user-supplied PIE kernel, parameterized by an
// arbitrary Context value type C (e.g. a BFS root id). Init seeds the
// fragment's vdata; PEval runs once per fragment the first time it is
// resident; IncEval runs on every subsequent visit. Both return
// whether the pass produced any new border-vertex update, which the
// scheduler uses to decide whether neighboring fragments must wake.
type AutoApp[C any] interface {
	Init(ctx context.Context, h Handles, c *C)
	PEval(ctx context.Context, h Handles, c *C) bool
	IncEval(ctx context.Context, h Handles, c *C) bool
}

// Run dispatches either PEval (firstVisit) or IncEval to app, matching
// the scheduler's "first visit vs. subsequent" dispatch rule.
func Run[C any](ctx context.Context, app AutoApp[C], h Handles, c *C, firstVisit bool) bool {
	if firstVisit {
		return app.PEval(ctx, h, c)
	}
	return app.IncEval(ctx, h, c)
}
