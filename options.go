package shikijin

type options struct {
	id        TaskID
	requires  []Capability
	createdAt Timestamp
	encoder   Encoder
}

// Option configures a task built by NewTask.
type Option func(*options)

// WithID sets a custom ID for the task. If not provided, a random ID is generated.
func WithID(id TaskID) Option {
	return func(o *options) {
		o.id = id
	}
}

// Requires adds capabilities a worker must hold to execute the task.
func Requires(caps ...Capability) Option {
	return func(o *options) {
		o.requires = append(o.requires, caps...)
	}
}

// CreatedAt overrides the creation timestamp.
func CreatedAt(ts Timestamp) Option {
	return func(o *options) {
		o.createdAt = ts
	}
}

// WithEncoder sets the encoder used for the payload.
func WithEncoder(e Encoder) Option {
	return func(o *options) {
		if e != nil {
			o.encoder = e
		}
	}
}
