package shikijin

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of the not-found family. Every lookup failure below
// satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not found")

// ErrTaskNotFound is returned when no task exists for the requested id.
var ErrTaskNotFound = fmt.Errorf("shikijin: task %w", ErrNotFound)

// ErrBlobNotFound is returned when no blob exists for the requested id.
var ErrBlobNotFound = fmt.Errorf("shikijin: blob %w", ErrNotFound)

// ErrAssignmentNotFound is returned when the assignment being resolved is not
// the active one for its task (already resolved, reclaimed, or never issued).
var ErrAssignmentNotFound = fmt.Errorf("shikijin: assignment %w", ErrNotFound)

// ErrNoCapableTask is returned by pickup when no pending task matches the
// supplied capabilities. It is expected and frequent.
var ErrNoCapableTask = errors.New("shikijin: no capable task")

// ErrAssignmentConflict is returned when a task already has an active assignment.
var ErrAssignmentConflict = errors.New("shikijin: assignment conflict")

// ErrUnknownState is returned when an invalid state is used.
var ErrUnknownState = errors.New("shikijin: unknown state")

// ErrNoHandler is returned by Mux.Execute when no handler is registered for the task type.
var ErrNoHandler = errors.New("shikijin: no handler")

// ErrHandlerPanic wraps a value recovered from a panicking handler.
var ErrHandlerPanic = errors.New("shikijin: handler panic")

// ErrInvalidID is returned when identifier text cannot be parsed.
var ErrInvalidID = errors.New("shikijin: invalid identifier")

// NotFoundError carries the identifier that was looked up. It unwraps to its
// Kind (ErrTaskNotFound, ErrBlobNotFound or ErrAssignmentNotFound).
type NotFoundError struct {
	Kind error
	ID   string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.ID == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Kind }

// TaskNotFound builds the error returned for a missing task.
func TaskNotFound(id TaskID) error {
	return &NotFoundError{Kind: ErrTaskNotFound, ID: id.String()}
}

// BlobNotFound builds the error returned for a missing blob.
func BlobNotFound(id BlobID) error {
	return &NotFoundError{Kind: ErrBlobNotFound, ID: id.String()}
}

// AssignmentNotFound builds the error returned when resolving an inactive assignment.
func AssignmentNotFound(id AssignmentID) error {
	return &NotFoundError{Kind: ErrAssignmentNotFound, ID: id.String()}
}

// AssignmentConflict builds the error returned when a task is already leased.
func AssignmentConflict(id TaskID) error {
	return fmt.Errorf("%w: task %s", ErrAssignmentConflict, id)
}

// TaskError reports a task whose execution failed and whose lease was abandoned.
type TaskError struct {
	TaskID       TaskID
	AssignmentID AssignmentID
	Err          error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("shikijin: task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
