package planner

// Phase is the visible stage of a planning session.
type Phase string

const (
	// PhaseWelcome is the initial phase, before any plan was requested.
	PhaseWelcome Phase = "welcome"
	// PhaseGenerating indicates a plan run is in progress.
	PhaseGenerating Phase = "generating"
	// PhaseResults indicates the latest plan run finished, successfully or
	// through the fallback path.
	PhaseResults Phase = "results"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid returns true if the phase is a known session phase.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseWelcome, PhaseGenerating, PhaseResults:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if the phase can transition to the target phase.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhaseWelcome:
		return target == PhaseGenerating
	case PhaseGenerating:
		// generating → generating when a newer plan supersedes a running one
		return target == PhaseResults || target == PhaseGenerating
	case PhaseResults:
		return target == PhaseGenerating
	default:
		return false
	}
}
