// Package memstore is the in-process Store backend. All state lives in maps
// guarded by one mutex, so pickup followed by assignment is atomic with
// respect to every other caller.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	shikijin "github.com/shikijin/shikijin-go"
)

// Store is an in-memory shikijin.Store.
type Store struct {
	id   shikijin.ComponentID
	name string
	log  shikijin.Logger
	ttl  time.Duration
	now  func() time.Time

	mu          sync.Mutex
	order       []shikijin.TaskID
	tasks       map[shikijin.TaskID]shikijin.Task
	assignments map[shikijin.TaskID]shikijin.Assignment
	completed   map[shikijin.TaskID]struct{}
	blobs       map[shikijin.BlobID]shikijin.Blob
}

var _ shikijin.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithName sets the component name used in logs.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(l shikijin.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLeaseTTL makes assignments expire after d. Zero (default) means leases never expire.
func WithLeaseTTL(d time.Duration) Option {
	return func(s *Store) {
		s.ttl = d
	}
}

// WithClock replaces time.Now, mainly for tests of lease expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		id:          shikijin.NewComponentID(),
		name:        "memstore",
		log:         shikijin.DiscardLogger,
		now:         time.Now,
		tasks:       make(map[shikijin.TaskID]shikijin.Task),
		assignments: make(map[shikijin.TaskID]shikijin.Assignment),
		completed:   make(map[shikijin.TaskID]struct{}),
		blobs:       make(map[shikijin.BlobID]shikijin.Blob),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = shikijin.WithComponent(s.log, s.name)
	return s
}

func (s *Store) ID() shikijin.ComponentID { return s.id }
func (s *Store) Name() string             { return s.name }

// AddTask never fails.
func (s *Store) AddTask(_ context.Context, t shikijin.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	delete(s.completed, t.ID)
	return nil
}

func (s *Store) GetTask(_ context.Context, id shikijin.TaskID) (shikijin.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		s.log.Debugf("task %s not found", id)
		return shikijin.Task{}, shikijin.TaskNotFound(id)
	}
	return t.Clone(), nil
}

func (s *Store) PickupTask(_ context.Context, caps []shikijin.Capability) (shikijin.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimLocked()
	t, ok := s.pickupLocked(caps)
	if !ok {
		return shikijin.Task{}, shikijin.ErrNoCapableTask
	}
	return t.Clone(), nil
}

func (s *Store) TaskState(_ context.Context, id shikijin.TaskID) (shikijin.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return "", shikijin.TaskNotFound(id)
	}
	return s.stateLocked(id), nil
}

func (s *Store) ListTasks(_ context.Context, state shikijin.State, filter shikijin.TaskFilter) ([]shikijin.Task, error) {
	if _, err := shikijin.ParseState(string(state)); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shikijin.Task
	for _, id := range s.order {
		if s.stateLocked(id) != state {
			continue
		}
		t := s.tasks[id].Clone()
		if filter == nil || filter(&t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) CreateAssignment(_ context.Context, worker shikijin.ComponentID, t shikijin.Task) (shikijin.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return shikijin.Assignment{}, shikijin.TaskNotFound(t.ID)
	}
	return s.assignLocked(worker, t.ID)
}

func (s *Store) CompleteAssignment(_ context.Context, a shikijin.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.releaseLocked(a); err != nil {
		return err
	}
	s.completed[a.TaskID] = struct{}{}
	return nil
}

func (s *Store) AbandonAssignment(_ context.Context, a shikijin.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(a)
}

func (s *Store) LeaseTask(_ context.Context, worker shikijin.ComponentID, caps []shikijin.Capability) (shikijin.Task, shikijin.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimLocked()
	t, ok := s.pickupLocked(caps)
	if !ok {
		return shikijin.Task{}, shikijin.Assignment{}, shikijin.ErrNoCapableTask
	}
	a, err := s.assignLocked(worker, t.ID)
	if err != nil {
		return shikijin.Task{}, shikijin.Assignment{}, err
	}
	return t.Clone(), a, nil
}

func (s *Store) ReclaimExpired(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reclaimLocked(), nil
}

func (s *Store) ActiveAssignments(context.Context) ([]shikijin.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shikijin.Assignment, 0, len(s.assignments))
	for _, id := range s.order {
		if a, ok := s.assignments[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveBlob(_ context.Context, b shikijin.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Data = slices.Clone(b.Data)
	s.blobs[b.ID] = b
	return nil
}

func (s *Store) GetBlob(_ context.Context, id shikijin.BlobID) (shikijin.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[id]
	if !ok {
		s.log.Debugf("blob %s not found", id)
		return shikijin.Blob{}, shikijin.BlobNotFound(id)
	}
	b.Data = slices.Clone(b.Data)
	return b, nil
}

func (s *Store) stateLocked(id shikijin.TaskID) shikijin.State {
	if _, ok := s.assignments[id]; ok {
		return shikijin.StateAssigned
	}
	if _, ok := s.completed[id]; ok {
		return shikijin.StateCompleted
	}
	return shikijin.StatePending
}

func (s *Store) pickupLocked(caps []shikijin.Capability) (shikijin.Task, bool) {
	for _, id := range s.order {
		if s.stateLocked(id) != shikijin.StatePending {
			continue
		}
		t := s.tasks[id]
		if t.CapableOf(caps) {
			return t, true
		}
	}
	return shikijin.Task{}, false
}

func (s *Store) assignLocked(worker shikijin.ComponentID, id shikijin.TaskID) (shikijin.Assignment, error) {
	if _, ok := s.assignments[id]; ok {
		return shikijin.Assignment{}, shikijin.AssignmentConflict(id)
	}
	a := shikijin.NewAssignment(worker, id, s.now(), s.ttl)
	s.assignments[id] = a
	return a, nil
}

// releaseLocked removes a's entry if it is still the active lease for its task.
func (s *Store) releaseLocked(a shikijin.Assignment) error {
	cur, ok := s.assignments[a.TaskID]
	if !ok || cur.ID != a.ID {
		s.log.Debugf("assignment %s for task %s not found", a.ID, a.TaskID)
		return shikijin.AssignmentNotFound(a.ID)
	}
	delete(s.assignments, a.TaskID)
	return nil
}

func (s *Store) reclaimLocked() int {
	if s.ttl <= 0 {
		return 0
	}
	now := shikijin.FromTime(s.now())
	n := 0
	for id, a := range s.assignments {
		if a.Expired(now) {
			delete(s.assignments, id)
			s.log.Warnf("lease expired: assignment=%s task=%s worker=%s", a.ID, id, a.WorkerID)
			n++
		}
	}
	return n
}
