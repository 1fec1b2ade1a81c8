// Package scheduler implements the engine's three bounded worker
// pools (load/compute/discharge) that drive every fragment in a
// workspace through the PIE program to a global fixpoint, per the
// dispatch rule: a load worker reserves a buffer slot and materializes
// a Fragment, a compute worker runs PEval or IncEval (first visit vs.
// subsequent), a discharge worker serializes and frees the slot, and
// the scheduler re-enqueues any GID the discharge's border publish
// left dirty.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/graphine/graphine/internal/csrio"
	"github.com/graphine/graphine/internal/datamgr"
	enginetrace "github.com/graphine/graphine/internal/engine/trace"
	"github.com/graphine/graphine/internal/fragstate"
	"github.com/graphine/graphine/internal/graph"
	"github.com/graphine/graphine/internal/msgmgr"
	"github.com/graphine/graphine/internal/pie"
	"github.com/graphine/graphine/internal/taskrunner"
	"github.com/graphine/graphine/pkg/engineerr"
	"github.com/graphine/graphine/pkg/enginelog"
)

// Config widths the three pools and the per-task compute runner, plus
// the resident-fragment buffer budget.
type Config struct {
	NumLoadWorkers      int
	NumComputeWorkers   int
	NumDischargeWorkers int
	NumCores            int
	BufferSize          int
}

func (c Config) normalize() Config {
	if c.NumLoadWorkers <= 0 {
		c.NumLoadWorkers = 1
	}
	if c.NumComputeWorkers <= 0 {
		c.NumComputeWorkers = 1
	}
	if c.NumDischargeWorkers <= 0 {
		c.NumDischargeWorkers = 1
	}
	if c.NumCores <= 0 {
		c.NumCores = 1
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1
	}
	return c
}

// Report summarizes a completed run: the final global epoch and, per
// GID, the epoch at which that fragment last ran.
type Report struct {
	Epoch          uint64
	FragmentEpochs map[graph.GID]uint64
}

// Status is a point-in-time, read-only snapshot of a running (or
// completed) Scheduler, for external monitoring (internal/engine/rpc's
// EngineStatus service). It is safe to call concurrently with Run.
type Status struct {
	Epoch          uint64
	FragmentCounts map[string]int64
	DirtyCount     int64
}

// Status takes a snapshot of every fragment's current fragstate and
// the message manager's pending dirty-set size. It never blocks on
// Run and never mutates scheduler state.
func (s *Scheduler[C]) Status() Status {
	s.mu.Lock()
	counts := make(map[string]int64, 7)
	for _, r := range s.frags {
		counts[r.machine.Current().String()]++
	}
	s.mu.Unlock()

	return Status{
		Epoch:          s.epoch.Load(),
		FragmentCounts: counts,
		DirtyCount:     int64(s.mm.DirtyCount()),
	}
}

// record tracks one fragment's scheduling state. Transitions are only
// ever made by the goroutine that currently "owns" the fragment (the
// load/compute/discharge worker presently handling its GID), matching
// fragstate.Machine's single-owner requirement; the surrounding map is
// guarded by Scheduler.mu for membership, not for the machine itself.
type record struct {
	machine     *fragstate.Machine
	initialized bool
	firstVisit  bool
	lastEpoch   uint64
	span        oteltrace.Span
}

// TransitionRecorder receives one callback per fragment-state
// transition. internal/runlog.Ledger satisfies this structurally so
// the scheduler never needs to import gorm; a Scheduler with no
// recorder configured skips the call entirely.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, runID string, gid graph.GID, from, to string, epoch uint64) error
}

// Scheduler owns the pending_load/ready/writeback queues, the buffer
// semaphore, and the epoch counter described in section 4.7. It is
// parameterized by the user Context type C, matching pie.AutoApp[C].
type Scheduler[C any] struct {
	cfg    Config
	dm     *datamgr.Manager
	mm     *msgmgr.Manager
	app    pie.AutoApp[C]
	pctx   *C
	runner *taskrunner.Runner
	log    enginelog.Logger

	recorder TransitionRecorder
	runID    string

	mu    sync.Mutex
	frags map[graph.GID]*record
	epoch atomic.Uint64

	pendingLoad chan graph.GID
	ready       chan graph.GID
	writeback   chan graph.GID
	bufferSem   chan struct{}

	inFlight    atomic.Int64
	quiesce     sync.Mutex
	done        chan struct{}
	doneOnce    sync.Once
	firstErr    atomic.Pointer[error]
	cancel      context.CancelFunc
}

// New creates a Scheduler over the GIDs in gids, reading and writing
// fragments through dm, communicating border state through mm, and
// running app/pctx as the PIE program. log receives per-fragment
// lifecycle lines; pass enginelog.NullLogger{} to silence them.
func New[C any](cfg Config, dm *datamgr.Manager, mm *msgmgr.Manager, app pie.AutoApp[C], pctx *C, log enginelog.Logger, gids []graph.GID) *Scheduler[C] {
	cfg = cfg.normalize()
	if log == nil {
		log = enginelog.NullLogger{}
	}

	s := &Scheduler[C]{
		cfg:         cfg,
		dm:          dm,
		mm:          mm,
		app:         app,
		pctx:        pctx,
		runner:      taskrunner.New(cfg.NumCores),
		log:         log,
		frags:       make(map[graph.GID]*record, len(gids)),
		pendingLoad: make(chan graph.GID, len(gids)*2+1),
		ready:       make(chan graph.GID, cfg.BufferSize),
		writeback:   make(chan graph.GID, cfg.BufferSize),
		bufferSem:   make(chan struct{}, cfg.BufferSize),
		done:        make(chan struct{}),
	}

	for _, gid := range gids {
		s.frags[gid] = &record{machine: fragstate.NewMachine()}
	}
	return s
}

// WithRunLog enables per-transition audit logging against recorder
// (e.g. an *internal/runlog.Ledger opened by the caller), tagged under
// runID. Must be called before Run; a Scheduler with no recorder
// configured never touches the ledger.
func (s *Scheduler[C]) WithRunLog(recorder TransitionRecorder, runID string) *Scheduler[C] {
	s.recorder = recorder
	s.runID = runID
	return s
}

// transition moves rec to next and, when a TransitionRecorder is
// configured, appends the move to the run ledger. Callers must hold
// s.mu; the ledger write happens synchronously but never blocks the
// transition itself on the recorder failing.
func (s *Scheduler[C]) transition(ctx context.Context, gid graph.GID, rec *record, next fragstate.State) error {
	from := rec.machine.Current()
	if err := rec.machine.Transition(next); err != nil {
		return err
	}
	if s.recorder != nil {
		if err := s.recorder.RecordTransition(ctx, s.runID, gid, from.String(), next.String(), rec.lastEpoch); err != nil {
			s.log.WithField("gid", gid).Error("run ledger record failed: %v", err)
		}
	}
	return nil
}

// Run dispatches every GID the Scheduler was built with, blocks until
// global fixpoint (or a fatal error, or ctx cancellation), and returns
// a Report. A fatal error (load error, kernel panic, discharge error)
// aborts the run: the run context is cancelled, each worker finishes
// the call it is in and exits, fragments still queued for compute or
// discharge are not discharged, and no result files are written.
func (s *Scheduler[C]) Run(ctx context.Context) (Report, error) {
	if err := s.preregisterOwners(); err != nil {
		return Report{}, err
	}

	ctx, runSpan := enginetrace.RunSpan(ctx, s.runID)
	defer runSpan.End()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(s.cfg.NumLoadWorkers + s.cfg.NumComputeWorkers + s.cfg.NumDischargeWorkers)

	for i := 0; i < s.cfg.NumLoadWorkers; i++ {
		go func() { defer wg.Done(); s.loadWorker(runCtx) }()
	}
	for i := 0; i < s.cfg.NumComputeWorkers; i++ {
		go func() { defer wg.Done(); s.computeWorker(runCtx) }()
	}
	for i := 0; i < s.cfg.NumDischargeWorkers; i++ {
		go func() { defer wg.Done(); s.dischargeWorker(runCtx) }()
	}

	s.mu.Lock()
	for gid := range s.frags {
		s.dispatchLoad(gid)
	}
	s.mu.Unlock()
	if len(s.frags) == 0 {
		s.finish()
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		s.setErr(ctx.Err())
		cancel()
	}
	cancel()
	wg.Wait()

	report := Report{Epoch: s.epoch.Load(), FragmentEpochs: make(map[graph.GID]uint64, len(s.frags))}
	s.mu.Lock()
	for gid, r := range s.frags {
		report.FragmentEpochs[gid] = r.lastEpoch
	}
	s.mu.Unlock()

	if p := s.firstErr.Load(); p != nil {
		return report, *p
	}

	if err := s.finalizeResults(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// finalizeResults runs once the whole workspace has reached global
// fixpoint: every fragment still in IDLE or INERT (nothing left ERROR
// since that path already returned) is settled into TERM and its
// final vdata is written to the result directory.
func (s *Scheduler[C]) finalizeResults(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for gid, r := range s.frags {
		if r.machine.IsTerminal() {
			continue
		}
		if err := s.transition(ctx, gid, r, fragstate.Term); err != nil {
			return engineerr.NewForGID(engineerr.KindSchedulerInvariantViolated, gid, err.Error())
		}
		if _, err := s.dm.Load(gid); err != nil {
			return err
		}
		if err := s.dm.WriteResult(gid); err != nil {
			return err
		}
		s.dm.Erase(gid)
	}
	return nil
}

// preregisterOwners reads every GID's localid2globalid bundle up
// front and registers ownership in the message manager before any
// worker starts. Doing this lazily at load time would race: a
// fragment that finishes PEval and publishes before a slower sibling
// has even started loading would find no owners registered for that
// sibling's vertices, and the dirty mark would be lost for good.
func (s *Scheduler[C]) preregisterOwners() error {
	ws := s.dm.Workspace()
	for gid := range s.frags {
		globals, err := csrio.ReadGlobalIDs(ws, gid)
		if err != nil {
			return err
		}
		for _, global := range globals {
			s.mm.RegisterOwner(global, gid)
		}
	}
	return nil
}

// dispatchLoad pushes gid onto pending_load and marks one more task
// in flight. Callers must hold s.mu.
func (s *Scheduler[C]) dispatchLoad(gid graph.GID) {
	s.inFlight.Add(1)
	select {
	case s.pendingLoad <- gid:
	default:
		// pendingLoad is sized generously (2x the fragment count) so
		// this should never block; if it would, the send is handed to
		// a goroutine so the caller never blocks while holding s.mu.
		go func() { s.pendingLoad <- gid }()
	}
}

func (s *Scheduler[C]) setErr(err error) {
	if err == nil {
		return
	}
	s.firstErr.CompareAndSwap(nil, &err)
}

func (s *Scheduler[C]) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// loadWorker reserves a buffer slot, reads the fragment from disk, and
// hands it to the compute pool. A load error fails the whole run per
// section 4.7's failure semantics.
func (s *Scheduler[C]) loadWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case gid, ok := <-s.pendingLoad:
			if !ok {
				return
			}
			s.handleLoad(ctx, gid)
		}
	}
}

func (s *Scheduler[C]) handleLoad(ctx context.Context, gid graph.GID) {
	select {
	case s.bufferSem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	rec := s.frags[gid]
	if err := s.transition(ctx, gid, rec, fragstate.Load); err != nil {
		s.mu.Unlock()
		<-s.bufferSem
		s.setErr(engineerr.NewForGID(engineerr.KindSchedulerInvariantViolated, gid, err.Error()))
		s.cancel()
		s.settleInFlight(0)
		return
	}
	s.mu.Unlock()

	f, err := s.dm.Load(gid)
	if err != nil {
		s.mu.Lock()
		_ = s.transition(ctx, gid, rec, fragstate.Error)
		s.mu.Unlock()
		<-s.bufferSem
		s.log.WithField("gid", gid).Error("load failed: %v", err)
		s.setErr(err)
		s.cancel()
		s.settleInFlight(0)
		return
	}

	s.mu.Lock()
	firstLoad := !rec.initialized
	rec.initialized = true
	s.mu.Unlock()
	if firstLoad {
		s.app.Init(ctx, pie.Handles{Fragment: f, Runner: s.runner, Messages: s.mm}, s.pctx)
	}

	s.mu.Lock()
	_ = s.transition(ctx, gid, rec, fragstate.Ready)
	s.mu.Unlock()

	select {
	case s.ready <- gid:
	case <-ctx.Done():
	}
}

// computeWorker pops a READY fragment, runs PEval or IncEval, and
// pushes it to writeback.
func (s *Scheduler[C]) computeWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case gid, ok := <-s.ready:
			if !ok {
				return
			}
			s.handleCompute(ctx, gid)
		}
	}
}

func (s *Scheduler[C]) handleCompute(ctx context.Context, gid graph.GID) {
	s.mu.Lock()
	rec := s.frags[gid]
	if err := s.transition(ctx, gid, rec, fragstate.Active); err != nil {
		s.mu.Unlock()
		s.setErr(engineerr.NewForGID(engineerr.KindSchedulerInvariantViolated, gid, err.Error()))
		s.cancel()
		s.settleInFlight(0)
		return
	}
	firstVisit := !rec.firstVisit
	rec.firstVisit = true
	s.mu.Unlock()

	f, ok := s.dm.Get(gid)
	if !ok {
		s.setErr(engineerr.NewForGID(engineerr.KindSchedulerInvariantViolated, gid, "compute worker popped a non-resident GID from ready"))
		s.cancel()
		s.settleInFlight(0)
		return
	}

	spanCtx, span := enginetrace.FragmentSpan(ctx, int64(gid), s.epoch.Load())
	s.mu.Lock()
	rec.span = span
	s.mu.Unlock()

	changed, panicked := s.runKernel(spanCtx, f, firstVisit)
	if panicked != nil {
		s.mu.Lock()
		_ = s.transition(ctx, gid, rec, fragstate.Error)
		if rec.span != nil {
			rec.span.End()
			rec.span = nil
		}
		s.mu.Unlock()
		s.log.WithField("gid", gid).Error("user kernel panicked: %v", panicked)
		s.setErr(engineerr.NewForGID(engineerr.KindUserKernelPanic, gid, fmt.Sprintf("%v", panicked)))
		s.cancel()
		s.settleInFlight(0)
		return
	}

	s.mu.Lock()
	rec.lastEpoch = s.epoch.Add(1)
	s.mu.Unlock()
	s.log.WithField("gid", gid).Debug("pass complete, border changed=%v", changed)

	s.mu.Lock()
	_ = s.transition(ctx, gid, rec, fragstate.RC)
	s.mu.Unlock()

	select {
	case s.writeback <- gid:
	case <-ctx.Done():
	}
}

// runKernel isolates a user kernel panic to this goroutine, per the
// compute-panic failure semantics ("isolated to that worker, the
// fragment is marked ERROR").
func (s *Scheduler[C]) runKernel(ctx context.Context, f *graph.Fragment, firstVisit bool) (changed bool, panicked any) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
		}
	}()
	h := pie.Handles{Fragment: f, Runner: s.runner, Messages: s.mm}
	changed = pie.Run[C](ctx, s.app, h, s.pctx, firstVisit)
	return changed, nil
}

// dischargeWorker serializes a fragment back to disk, frees its
// buffer slot, and consults drain_dirty() to decide who wakes next.
func (s *Scheduler[C]) dischargeWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case gid, ok := <-s.writeback:
			if !ok {
				return
			}
			s.handleDischarge(ctx, gid)
		}
	}
}

func (s *Scheduler[C]) handleDischarge(ctx context.Context, gid graph.GID) {
	if err := s.dm.Write(gid); err != nil {
		s.log.WithField("gid", gid).Error("discharge write failed: %v", err)
		s.mu.Lock()
		rec := s.frags[gid]
		_ = s.transition(ctx, gid, rec, fragstate.Error)
		if rec.span != nil {
			rec.span.End()
			rec.span = nil
		}
		s.mu.Unlock()
		<-s.bufferSem
		s.setErr(err)
		s.cancel()
		s.settleInFlight(0)
		return
	}

	dirty := s.mm.DrainDirty()

	s.mu.Lock()
	rec := s.frags[gid]
	if rec.span != nil {
		rec.span.End()
		rec.span = nil
	}
	next := fragstate.Idle
	if rec.firstVisit {
		// This fragment just ran at least once. If nothing in the
		// global dirty set names it, it is provisionally done; the
		// quiescence check below may still re-wake it if draining
		// the dirty set later turns up its GID.
		next = fragstate.Inert
	}
	for _, d := range dirty {
		if d == gid {
			next = fragstate.Idle
		}
	}
	_ = s.transition(ctx, gid, rec, next)
	s.mu.Unlock()

	// The fragment's slot is released and its memory reclaimed here,
	// regardless of whether this is its final discharge: a later
	// border update reloads it fresh from the bundle Write just
	// persisted. Erase drops the entry at once; the Data Manager keeps
	// no reference count.
	s.dm.Erase(gid)
	<-s.bufferSem

	toWake := map[graph.GID]bool{}
	for _, d := range dirty {
		toWake[d] = true
	}
	s.mu.Lock()
	for d := range toWake {
		r, ok := s.frags[d]
		if !ok || r.machine.IsTerminal() {
			continue
		}
		if r.machine.Current() == fragstate.Inert {
			_ = r.machine.Wake()
		}
		if r.machine.IsSchedulable() {
			s.dispatchLoad(d)
		} else {
			// Already mid-flight (LOAD/READY/ACTIVE/RC): re-arm the
			// dirty bit so this signal resurfaces once it settles,
			// rather than being lost to this drain.
			s.mm.MarkDirty(d)
		}
	}
	s.mu.Unlock()

	// This fragment is settled (not re-enqueued by the dirty set
	// above) unless it was itself one of the woken GIDs.
	settledHere := !toWake[gid]
	if settledHere {
		s.settleInFlight(1)
	} else {
		s.inFlight.Add(-1)
	}
}

// settleInFlight decrements the in-flight counter by delta (1 for a
// normal completion, 0 for an abort path that already stopped
// counting) and, if it reaches zero, performs the final quiescence
// check from section 4.7: pending_load/ready/writeback empty, no
// active worker, and drain_dirty() empty. A border update racing in
// just as the last fragment settles is caught here and re-dispatched;
// otherwise the run is declared at fixpoint.
func (s *Scheduler[C]) settleInFlight(delta int64) {
	if delta != 0 {
		if s.inFlight.Add(-delta) > 0 {
			return
		}
	} else if s.inFlight.Load() > 0 {
		return
	}

	s.quiesce.Lock()
	defer s.quiesce.Unlock()

	if s.inFlight.Load() != 0 {
		return
	}

	dirty := s.mm.DrainDirty()
	if len(dirty) == 0 {
		s.finish()
		return
	}

	s.mu.Lock()
	for _, gid := range dirty {
		r, ok := s.frags[gid]
		if !ok || r.machine.IsTerminal() {
			continue
		}
		if r.machine.Current() == fragstate.Inert {
			_ = r.machine.Wake()
		}
		if r.machine.IsSchedulable() {
			s.dispatchLoad(gid)
		} else {
			s.mm.MarkDirty(gid)
		}
	}
	s.mu.Unlock()
}
