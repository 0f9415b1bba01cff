package shikijin

// State is the lifecycle state of a task with respect to leasing.
// Use the exported constants instead of raw strings to avoid typos.
type State string

const (
	// StatePending holds tasks eligible for pickup.
	StatePending State = "pending"
	// StateAssigned holds tasks with an active assignment.
	StateAssigned State = "assigned"
	// StateCompleted holds tasks whose assignment was completed. The record is
	// retained but never picked up again unless re-admitted with AddTask.
	StateCompleted State = "completed"
)

// AllStates lists every valid state in a stable order.
var AllStates = []State{StatePending, StateAssigned, StateCompleted}

// String returns the raw string value of the state.
func (s State) String() string { return string(s) }

// ParseState converts a string into a State, returning an error for unknown values.
func ParseState(s string) (State, error) {
	switch s {
	case string(StatePending):
		return StatePending, nil
	case string(StateAssigned):
		return StateAssigned, nil
	case string(StateCompleted):
		return StateCompleted, nil
	default:
		return "", ErrUnknownState
	}
}
