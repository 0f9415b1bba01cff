package hctx

import (
	"context"
	"sync"
)

// State holds per-execution data shared between the runtime and a running
// handler: the lease being worked on and follow-on items emitted while running.
type State[A, T any] struct {
	Assignment A

	mu      sync.Mutex
	spawned []T
}

// New creates a fresh handler state container.
func New[A, T any](a A) *State[A, T] { return &State[A, T]{Assignment: a} }

// Spawn appends follow-on items.
func (s *State[A, T]) Spawn(items ...T) {
	s.mu.Lock()
	s.spawned = append(s.spawned, items...)
	s.mu.Unlock()
}

// Spawned returns the items emitted so far.
func (s *State[A, T]) Spawned() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.spawned))
	copy(out, s.spawned)
	return out
}

type ctxKey struct{}

// WithState returns a child context carrying the given handler state.
func WithState[A, T any](parent context.Context, s *State[A, T]) context.Context {
	return context.WithValue(parent, ctxKey{}, s)
}

// From extracts the handler state from context if present.
func From[A, T any](ctx context.Context) (*State[A, T], bool) {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return nil, false
	}
	st, ok := v.(*State[A, T])
	return st, ok
}
