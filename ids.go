package shikijin

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

type (
	taskKind       struct{}
	assignmentKind struct{}
	componentKind  struct{}
	capabilityKind struct{}
	blobKind       struct{}
)

// Identifier is an opaque, randomly generated 128-bit value. The type parameter
// only tags the kind of entity it names, so a TaskID cannot be passed where a
// BlobID is expected even though both share one representation.
type Identifier[K any] struct {
	u uuid.UUID
}

type (
	// TaskID identifies a Task.
	TaskID = Identifier[taskKind]
	// AssignmentID identifies an Assignment.
	AssignmentID = Identifier[assignmentKind]
	// ComponentID identifies a component such as a worker or a store.
	ComponentID = Identifier[componentKind]
	// CapabilityID identifies a Capability.
	CapabilityID = Identifier[capabilityKind]
	// BlobID identifies a Blob.
	BlobID = Identifier[blobKind]
)

func newIdentifier[K any]() Identifier[K] { return Identifier[K]{u: uuid.New()} }

func NewTaskID() TaskID             { return newIdentifier[taskKind]() }
func NewAssignmentID() AssignmentID { return newIdentifier[assignmentKind]() }
func NewComponentID() ComponentID   { return newIdentifier[componentKind]() }
func NewCapabilityID() CapabilityID { return newIdentifier[capabilityKind]() }
func NewBlobID() BlobID             { return newIdentifier[blobKind]() }

func ParseTaskID(s string) (TaskID, error)             { return parseIdentifier[taskKind](s) }
func ParseAssignmentID(s string) (AssignmentID, error) { return parseIdentifier[assignmentKind](s) }
func ParseComponentID(s string) (ComponentID, error)   { return parseIdentifier[componentKind](s) }
func ParseCapabilityID(s string) (CapabilityID, error) { return parseIdentifier[capabilityKind](s) }
func ParseBlobID(s string) (BlobID, error)             { return parseIdentifier[blobKind](s) }

// capabilityNamespace seeds name-derived capability identifiers.
var capabilityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shikijin:capability"))

// CapabilityIDFor derives a stable identifier from a capability name, so the
// same name yields the same identifier in every process.
func CapabilityIDFor(name string) CapabilityID {
	return CapabilityID{u: uuid.NewSHA1(capabilityNamespace, []byte(name))}
}

// String returns the compact form: URL-safe base64 without padding (22 chars).
func (id Identifier[K]) String() string {
	return base64.RawURLEncoding.EncodeToString(id.u[:])
}

// Bytes returns a copy of the 16 raw bytes.
func (id Identifier[K]) Bytes() []byte {
	b := id.u
	return b[:]
}

// UUID exposes the underlying UUID value.
func (id Identifier[K]) UUID() uuid.UUID { return id.u }

// IsZero reports whether id is the zero identifier.
func (id Identifier[K]) IsZero() bool { return id.u == uuid.Nil }

func (id Identifier[K]) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identifier[K]) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = Identifier[K]{}
		return nil
	}
	v, err := parseIdentifier[K](string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// parseIdentifier accepts the 22 char compact form, 32 char hex and the
// canonical hyphenated UUID text.
func parseIdentifier[K any](s string) (Identifier[K], error) {
	if len(s) == 22 {
		b, err := base64.RawURLEncoding.Strict().DecodeString(s)
		if err != nil {
			return Identifier[K]{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return Identifier[K]{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}
		return Identifier[K]{u: u}, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return Identifier[K]{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return Identifier[K]{u: u}, nil
}
