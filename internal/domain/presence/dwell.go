package presence

import (
	"fmt"
	"time"
)

// Phase enumerates the states of the dwell machine.
type Phase int

const (
	// PhaseIdle means no sustained presence.
	PhaseIdle Phase = iota
	// PhaseDwelling means presence is observed and the dwell timer runs.
	PhaseDwelling
	// PhaseTriggered means an episode already fired for this continuous presence.
	PhaseTriggered
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDwelling:
		return "dwelling"
	case PhaseTriggered:
		return "triggered"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DwellState is Idle, Dwelling(since) or Triggered. The zero value is Idle.
// since is only meaningful while dwelling and is dropped on every other transition.
type DwellState struct {
	// phase is the current state tag.
	phase Phase
	// since is when the current dwell started; zero outside PhaseDwelling.
	since time.Time
}

// Idle returns the initial state.
func Idle() DwellState {
	return DwellState{phase: PhaseIdle}
}

// Dwelling returns the state entered when presence is first seen at since.
func Dwelling(since time.Time) DwellState {
	return DwellState{phase: PhaseDwelling, since: since}
}

// Triggered returns the state after an episode fired.
func Triggered() DwellState {
	return DwellState{phase: PhaseTriggered}
}

// Phase returns the state tag.
func (s DwellState) Phase() Phase {
	return s.phase
}

// Since returns when the dwell started, and false outside PhaseDwelling.
func (s DwellState) Since() (time.Time, bool) {
	if s.phase != PhaseDwelling {
		return time.Time{}, false
	}

	return s.since, true
}

// String renders the state for logs.
func (s DwellState) String() string {
	if s.phase == PhaseDwelling {
		return fmt.Sprintf("dwelling(since=%s)", s.since.Format(time.RFC3339Nano))
	}

	return s.phase.String()
}

// Step applies one successful poll. It returns the next state and whether a
// detection episode must run before that state is adopted.
//
//   - not near: Idle, whatever the previous state (the only way out of Triggered);
//   - near while Idle: Dwelling(now);
//   - near while Dwelling for at least dwell: fire, then Triggered;
//   - otherwise: unchanged.
func (s DwellState) Step(now time.Time, near bool, dwell time.Duration) (DwellState, bool) {
	if !near {
		return Idle(), false
	}

	switch s.phase {
	case PhaseIdle:
		return Dwelling(now), false
	case PhaseDwelling:
		if now.Sub(s.since) >= dwell {
			return Triggered(), true
		}

		return s, false
	default:
		return s, false
	}
}
