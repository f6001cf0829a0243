package phase

import "fmt"

// Position locates a phase within an enabled phase set.
type Position int

const (
	// First is the opening phase of a cycle.
	First Position = iota
	// Interior is any phase between the first and last.
	Interior
	// Last is the closing phase of a cycle.
	Last
)

// Outcome is the result of evaluating one transition.
type Outcome int

const (
	// Stay means the current phase needs another iteration.
	Stay Outcome = iota
	// Advance means move to the next enabled phase.
	Advance
	// CycleComplete means a full pass finished; loop back to the first phase.
	CycleComplete
	// RunComplete means the first phase found no work; the run is done.
	RunComplete
)

// String returns a short lower-case outcome label for logging.
func (o Outcome) String() string {
	switch o {
	case Stay:
		return "stay"
	case Advance:
		return "advance"
	case CycleComplete:
		return "cycle_complete"
	case RunComplete:
		return "run_complete"
	default:
		return "unknown"
	}
}

// Decision is the evaluated transition for one iteration.
type Decision struct {
	Outcome Outcome
	// Next is the phase the run should be in afterwards. For RunComplete it
	// equals the current phase (the run halts there).
	Next Phase
}

// Machine evaluates the cycle transition rule over a fixed enabled phase
// list. It is stateless beyond the list itself; counters live in run state.
type Machine struct {
	phases []Descriptor
	index  map[Phase]int
}

// NewMachine builds a machine for the given mode's enabled phases.
func NewMachine(mode Mode) *Machine {
	list := List(mode)
	idx := make(map[Phase]int, len(list))
	for i, d := range list {
		idx[d.Phase] = i
	}
	return &Machine{phases: list, index: idx}
}

// Phases returns the ordered enabled phase descriptors.
func (m *Machine) Phases() []Descriptor {
	return m.phases
}

// First returns the opening phase of the cycle.
func (m *Machine) First() Phase {
	return m.phases[0].Phase
}

// Contains reports whether p is an enabled phase.
func (m *Machine) Contains(p Phase) bool {
	_, ok := m.index[p]
	return ok
}

// Position locates p within the enabled set. It panics if p is not enabled;
// callers must validate phases loaded from external state with Contains.
func (m *Machine) Position(p Phase) Position {
	i, ok := m.index[p]
	if !ok {
		panic(fmt.Sprintf("phase %s is not enabled", p))
	}
	switch i {
	case 0:
		return First
	case len(m.phases) - 1:
		return Last
	default:
		return Interior
	}
}

// Decide applies the transition rule to an exit signal observed in phase p.
// phaseIterations is how many iterations the run has spent in p since
// entering it this cycle, counting the one that produced the signal:
//
//   - no exit signal: stay, another iteration is needed in p
//   - exit signal in the first phase on its first iteration: the run is
//     complete, the phase was asked for work and found none
//   - exit signal in the first phase after prior iterations there: the phase
//     produced work and is done, advance like any interior phase
//   - exit signal in an interior phase: advance to the next phase
//   - exit signal in the last phase: the cycle is complete, loop to the first
//     phase (the engine enforces the max-cycle ceiling on this outcome)
func (m *Machine) Decide(p Phase, exitSignal bool, phaseIterations int) Decision {
	if !exitSignal {
		return Decision{Outcome: Stay, Next: p}
	}
	switch m.Position(p) {
	case First:
		if phaseIterations <= 1 {
			return Decision{Outcome: RunComplete, Next: p}
		}
		return Decision{Outcome: Advance, Next: m.phases[m.index[p]+1].Phase}
	case Last:
		return Decision{Outcome: CycleComplete, Next: m.First()}
	default:
		return Decision{Outcome: Advance, Next: m.phases[m.index[p]+1].Phase}
	}
}

// Model returns the model kind configured for p, defaulting to ModelDefault
// for phases outside the table.
func (m *Machine) Model(p Phase) ModelKind {
	if d, ok := Lookup(p); ok {
		return d.Model
	}
	return ModelDefault
}
