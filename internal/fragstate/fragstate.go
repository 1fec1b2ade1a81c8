// Package fragstate implements the per-fragment lifecycle state
// machine: IDLE -> LOAD -> READY -> ACTIVE -> RC -> IDLE, with an
// INERT sub-state of IDLE for fragments that finished a pass and have
// received no border update since.
package fragstate

import "fmt"

// State is one stage of a fragment's lifecycle.
type State int

const (
	// Idle means the fragment is not resident and not scheduled.
	Idle State = iota
	// Inert is Idle's sub-state: the fragment finished a pass (PEval or
	// IncEval) and no border update naming it has arrived since. The
	// scheduler skips Inert fragments until a border publish targets them.
	Inert
	// Load means a load worker is reading the fragment from disk.
	Load
	// Ready means the fragment is resident and waiting for a compute
	// worker to pick it up.
	Ready
	// Active means a compute worker is running PEval or IncEval.
	Active
	// RC (release/commit) means a discharge worker is serializing the
	// fragment and about to free its buffer slot.
	RC
	// Error is terminal: a user kernel panicked or an IO write failed
	// during discharge.
	Error
	// Term is terminal: the fragment reached global fixpoint and will
	// never be scheduled again.
	Term
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Inert:
		return "INERT"
	case Load:
		return "LOAD"
	case Ready:
		return "READY"
	case Active:
		return "ACTIVE"
	case RC:
		return "RC"
	case Error:
		return "ERROR"
	case Term:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}

// transitions enumerates the legal (from, to) edges of the state
// machine in section 4.8, plus the INERT detour and terminal states.
var transitions = map[State]map[State]bool{
	Idle:   {Load: true, Term: true},
	Inert:  {Load: true, Term: true}, // a border update re-admits an inert fragment
	Load:   {Ready: true, Error: true},
	Ready:  {Active: true},
	Active: {RC: true, Error: true},
	RC:     {Idle: true, Inert: true, Term: true, Error: true},
}

// Machine tracks one fragment's current state and enforces that only
// legal transitions are taken. It is not safe for concurrent use by
// itself — callers (the scheduler) serialize transitions per fragment
// under the dispatch rule's ownership discipline, since a fragment is
// owned by exactly one pool at a time.
type Machine struct {
	current State
}

// NewMachine creates a Machine starting in Idle.
func NewMachine() *Machine {
	return &Machine{current: Idle}
}

// Current returns the machine's current state.
func (m *Machine) Current() State { return m.current }

// Transition moves the machine to next, returning an error if the
// move is not legal from the current state.
func (m *Machine) Transition(next State) error {
	allowed, ok := transitions[m.current]
	if !ok || !allowed[next] {
		return fmt.Errorf("fragstate: illegal transition %s -> %s", m.current, next)
	}
	m.current = next
	return nil
}

// IsTerminal reports whether the machine has reached TERM or ERROR and
// will never be scheduled again.
func (m *Machine) IsTerminal() bool {
	return m.current == Term || m.current == Error
}

// IsResident reports whether the fragment currently occupies a buffer
// slot (READY, ACTIVE, or RC, per the buffer_size accounting rule).
func (m *Machine) IsResident() bool {
	return m.current == Ready || m.current == Active || m.current == RC
}

// IsSchedulable reports whether the scheduler should consider this
// fragment for loading: IDLE fragments are, INERT ones are not until
// woken by a border update (callers transition INERT -> IDLE first
// when a wake occurs, then call Transition(Load)).
func (m *Machine) IsSchedulable() bool {
	return m.current == Idle
}

// Wake transitions an INERT fragment back to IDLE so it becomes
// schedulable again, per a border-vertex update targeting it.
func (m *Machine) Wake() error {
	if m.current != Inert {
		return fmt.Errorf("fragstate: Wake called from non-INERT state %s", m.current)
	}
	m.current = Idle
	return nil
}
