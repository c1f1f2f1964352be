package runtime

// Phase is the step of the turn currently running.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseResolving
	PhaseTransitioning
	PhaseActing
	PhasePersisting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseResolving:
		return "resolving"
	case PhaseTransitioning:
		return "transitioning"
	case PhaseActing:
		return "acting"
	case PhasePersisting:
		return "persisting"
	}
	return "unknown"
}
