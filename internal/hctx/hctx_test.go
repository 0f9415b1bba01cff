package hctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHctx_NoState(t *testing.T) {
	st, ok := From[string, int](context.Background())
	require.False(t, ok)
	require.Nil(t, st)
}

func TestHctx_WithStateAndFrom(t *testing.T) {
	s := New[string, int]("lease-1")
	ctx := WithState(context.Background(), s)
	got, ok := From[string, int](ctx)
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, "lease-1", got.Assignment)

	// different type parameters do not match
	_, ok = From[string, string](ctx)
	require.False(t, ok)
}

func TestHctx_SpawnConcurrent(t *testing.T) {
	s := New[string, int]("a")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Spawn(i)
		}(i)
	}
	wg.Wait()
	require.Len(t, s.Spawned(), 20)

	// returned slice is a copy
	out := s.Spawned()
	out[0] = -1
	require.NotEqual(t, -1, s.Spawned()[0])
}
