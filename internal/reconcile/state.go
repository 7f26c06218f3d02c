package reconcile

// State is the reconciler's coarse state.
type State int32

const (
	// StateIdle means no pass is queued or running.
	StateIdle State = iota
	// StateReconciling means a pass is queued or running.
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// Reason records what asked for a pass.
type Reason string

const (
	ReasonSubmit               Reason = "submit"
	ReasonConnectivityRestored Reason = "connectivity_restored"
	ReasonManual               Reason = "manual"
)
