package shikijin

import "context"

// TaskFilter is a function used to filter tasks during ListTasks.
type TaskFilter func(*Task) bool

// TaskStore keeps task records and their pending/assigned/completed status.
type TaskStore interface {
	// AddTask inserts or overwrites the record keyed by t.ID. A task that is not
	// under an active assignment becomes eligible for pickup, including a task
	// that had been completed before.
	AddTask(ctx context.Context, t Task) error
	// GetTask returns the record or ErrTaskNotFound.
	GetTask(ctx context.Context, id TaskID) (Task, error)
	// PickupTask returns the first pending task, in insertion order, whose
	// requirements are covered by caps, or ErrNoCapableTask. It does not lease
	// the task: callers must CreateAssignment right away, or use LeaseTask.
	PickupTask(ctx context.Context, caps []Capability) (Task, error)
	// TaskState reports the lifecycle state of a task.
	TaskState(ctx context.Context, id TaskID) (State, error)
	// ListTasks returns tasks in the given state, in insertion order.
	ListTasks(ctx context.Context, state State, filter TaskFilter) ([]Task, error)
}

// AssignmentManager issues and resolves leases. At most one assignment is
// active per task at any time.
type AssignmentManager interface {
	// CreateAssignment leases t to worker. It fails with ErrAssignmentConflict
	// when t already has an active assignment.
	CreateAssignment(ctx context.Context, worker ComponentID, t Task) (Assignment, error)
	// CompleteAssignment resolves a successful lease; the task is retained as completed.
	CompleteAssignment(ctx context.Context, a Assignment) error
	// AbandonAssignment releases a lease; the task becomes pending again.
	AbandonAssignment(ctx context.Context, a Assignment) error
	// LeaseTask picks up and leases a capable task as one atomic step.
	LeaseTask(ctx context.Context, worker ComponentID, caps []Capability) (Task, Assignment, error)
	// ReclaimExpired drops assignments past their expiry and returns how many were dropped.
	ReclaimExpired(ctx context.Context) (int, error)
	// ActiveAssignments lists the leases currently held.
	ActiveAssignments(ctx context.Context) ([]Assignment, error)
}

// BlobStore keeps opaque payloads addressed by identifier.
type BlobStore interface {
	SaveBlob(ctx context.Context, b Blob) error
	GetBlob(ctx context.Context, id BlobID) (Blob, error)
}

// Store is the full contract implemented by every backend. All methods are
// safe for concurrent use.
type Store interface {
	TaskStore
	AssignmentManager
	BlobStore
}

// Component is implemented by long-lived parts of the system that have an
// identity and a human readable name used in logs.
type Component interface {
	ID() ComponentID
	Name() string
}
