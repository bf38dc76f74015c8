package service

// State is the lifecycle state of a monitored service as seen by the
// supervisor. A service starts in StateUnknown until the first probe
// completes. StateFailedPermanently is terminal until an operator clears it.
type State int32

const (
	StateUnknown State = iota
	StateHealthy
	StateUnhealthy
	StateRestarting
	StateFailedPermanently
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateHealthy:
		return "healthy"
	case StateUnhealthy:
		return "unhealthy"
	case StateRestarting:
		return "restarting"
	case StateFailedPermanently:
		return "failed_permanently"
	default:
		return "invalid"
	}
}

// ParseState maps a persisted state string back to a State. Unrecognized
// strings map to StateUnknown so stale records never wedge a watcher.
func ParseState(s string) State {
	switch s {
	case "healthy":
		return StateHealthy
	case "unhealthy":
		return StateUnhealthy
	case "restarting":
		return StateRestarting
	case "failed_permanently":
		return StateFailedPermanently
	default:
		return StateUnknown
	}
}

// Terminal reports whether the state requires operator intervention.
func (s State) Terminal() bool { return s == StateFailedPermanently }
