package shikijin

import (
	"slices"
	"time"
)

// Entity holds the timestamps shared by every record. Entities are values:
// a change produces a new value with UpdatedAt moved forward.
type Entity struct {
	// CreatedAt is set once, at construction.
	CreatedAt Timestamp `json:"created_at"`
	// UpdatedAt is set at construction and on every change.
	UpdatedAt Timestamp `json:"updated_at"`
}

func newEntity(now Timestamp) Entity { return Entity{CreatedAt: now, UpdatedAt: now} }

func (e Entity) touched() Entity {
	e.UpdatedAt = Now()
	return e
}

// Capability is one discrete ability a worker has or a task needs.
// Capabilities are matched by ID, never by Name.
type Capability struct {
	ID   CapabilityID `json:"id"`
	Name string       `json:"name,omitempty"`
	Entity
}

// NewCapability creates a capability with a random identifier.
func NewCapability(name string) Capability {
	return Capability{ID: NewCapabilityID(), Name: name, Entity: newEntity(Now())}
}

// CapabilityNamed creates a capability whose identifier is derived from name,
// so independently configured workers and submitters agree on it.
func CapabilityNamed(name string) Capability {
	return Capability{ID: CapabilityIDFor(name), Name: name, Entity: newEntity(Now())}
}

func (c Capability) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID.String()
}

// Task is a unit of work. Type selects the handler in a Mux, Payload is the
// encoded input and Requires lists the capabilities a worker must hold.
// The required capability set is fixed at creation.
type Task struct {
	ID       TaskID       `json:"id"`
	Type     string       `json:"type"`
	Requires []Capability `json:"requires,omitempty"`
	Payload  []byte       `json:"payload,omitempty"`
	Entity
}

// NewTask builds a task of the given type. A []byte payload is stored as is;
// anything else is encoded with the task encoder (JSON by default).
func NewTask(taskType string, payload any, opts ...Option) (Task, error) {
	cfg := &options{encoder: &JSONEncoder{}}
	for _, opt := range opts {
		opt(cfg)
	}

	var data []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = slices.Clone(v)
	default:
		b, err := cfg.encoder.Encode(v)
		if err != nil {
			return Task{}, err
		}
		data = b
	}

	id := cfg.id
	if id.IsZero() {
		id = NewTaskID()
	}
	created := cfg.createdAt
	if created.IsZero() {
		created = Now()
	}
	return Task{
		ID:       id,
		Type:     taskType,
		Requires: slices.Clone(cfg.requires),
		Payload:  data,
		Entity:   newEntity(created),
	}, nil
}

// Clone returns a deep copy so callers cannot alias store-owned slices.
func (t Task) Clone() Task {
	t.Requires = slices.Clone(t.Requires)
	t.Payload = slices.Clone(t.Payload)
	return t
}

// WithPayload returns a copy of t carrying b as its payload.
func (t Task) WithPayload(b []byte) Task {
	out := t.Clone()
	out.Payload = slices.Clone(b)
	out.Entity = out.Entity.touched()
	return out
}

// Decode decodes the payload into v with the default encoder.
// Tasks built WithEncoder should be decoded with DecodeWith.
func (t Task) Decode(v any) error { return t.DecodeWith(nil, v) }

// DecodeWith decodes the payload into v with enc, or the default encoder when enc is nil.
func (t Task) DecodeWith(enc Encoder, v any) error {
	if enc == nil {
		enc = &JSONEncoder{}
	}
	return enc.Decode(t.Payload, v)
}

// CapableOf reports whether a worker holding possessed may execute t.
func (t Task) CapableOf(possessed []Capability) bool {
	return Capable(t.Requires, possessed)
}

// Assignment is an active lease binding one worker to one task.
type Assignment struct {
	ID       AssignmentID `json:"id"`
	WorkerID ComponentID  `json:"worker_id"`
	TaskID   TaskID       `json:"task_id"`
	// ExpiresAt is when the lease may be reclaimed; zero means never.
	ExpiresAt Timestamp `json:"expires_at,omitempty"`
	Entity
}

// NewAssignment leases task to worker at now. A non-positive ttl yields a lease that never expires.
func NewAssignment(worker ComponentID, task TaskID, now time.Time, ttl time.Duration) Assignment {
	a := Assignment{
		ID:       NewAssignmentID(),
		WorkerID: worker,
		TaskID:   task,
		Entity:   newEntity(FromTime(now)),
	}
	if ttl > 0 {
		a.ExpiresAt = FromTime(now.Add(ttl))
	}
	return a
}

// Expired reports whether the lease has passed its expiry at now.
func (a Assignment) Expired(now Timestamp) bool {
	return a.ExpiresAt != 0 && now >= a.ExpiresAt
}

// Blob is an opaque byte payload addressed by its own identifier.
type Blob struct {
	ID   BlobID `json:"id"`
	Data []byte `json:"data"`
	Entity
}

// NewBlob wraps a copy of data in a new blob.
func NewBlob(data []byte) Blob {
	return Blob{ID: NewBlobID(), Data: slices.Clone(data), Entity: newEntity(Now())}
}
