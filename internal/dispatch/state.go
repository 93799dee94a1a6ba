// ABOUTME: Request lifecycle states of the dispatch coordinator.

package dispatch

// State is a step in the request lifecycle.
type State int

const (
	StateIdle State = iota
	StateContextLoaded
	StateAgentRunning
	StateQueueDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateContextLoaded:
		return "CONTEXT_LOADED"
	case StateAgentRunning:
		return "AGENT_RUNNING"
	case StateQueueDraining:
		return "QUEUE_DRAINING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
