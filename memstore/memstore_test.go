package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	shikijin "github.com/shikijin/shikijin-go"
	"github.com/stretchr/testify/require"
)

func mustTask(t *testing.T, caps ...shikijin.Capability) shikijin.Task {
	t.Helper()
	tk, err := shikijin.NewTask("t", nil, shikijin.Requires(caps...))
	require.NoError(t, err)
	return tk
}

func TestStore_Scenario_CompleteRetainsTask(t *testing.T) {
	s := New()
	ctx := context.Background()
	w1 := shikijin.NewComponentID()

	t1 := mustTask(t)
	require.NoError(t, s.AddTask(ctx, t1))

	got, err := s.PickupTask(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, t1.ID, got.ID)

	a, err := s.CreateAssignment(ctx, w1, got)
	require.NoError(t, err)
	require.Equal(t, w1, a.WorkerID)
	require.Equal(t, t1.ID, a.TaskID)

	_, err = s.CreateAssignment(ctx, w1, got)
	require.ErrorIs(t, err, shikijin.ErrAssignmentConflict)

	require.NoError(t, s.CompleteAssignment(ctx, a))

	_, err = s.PickupTask(ctx, nil)
	require.ErrorIs(t, err, shikijin.ErrNoCapableTask)

	// record retained with a terminal state
	st, err := s.TaskState(ctx, t1.ID)
	require.NoError(t, err)
	require.Equal(t, shikijin.StateCompleted, st)
	_, err = s.GetTask(ctx, t1.ID)
	require.NoError(t, err)

	// re-admission makes it pending again
	require.NoError(t, s.AddTask(ctx, t1))
	got, err = s.PickupTask(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, t1.ID, got.ID)
}

func TestStore_Scenario_CapabilityRequired(t *testing.T) {
	s := New()
	ctx := context.Background()
	c1 := shikijin.NewCapability("c1")

	t2 := mustTask(t, c1)
	require.NoError(t, s.AddTask(ctx, t2))

	_, err := s.PickupTask(ctx, nil)
	require.ErrorIs(t, err, shikijin.ErrNoCapableTask)

	got, err := s.PickupTask(ctx, []shikijin.Capability{c1})
	require.NoError(t, err)
	require.Equal(t, t2.ID, got.ID)
}

func TestStore_Pickup_SubsetMatching(t *testing.T) {
	s := New()
	ctx := context.Background()
	c1, c2, c3 := shikijin.NewCapability("c1"), shikijin.NewCapability("c2"), shikijin.NewCapability("c3")

	big := mustTask(t, c1, c2, c3)
	small := mustTask(t, c1)
	require.NoError(t, s.AddTask(ctx, big))
	require.NoError(t, s.AddTask(ctx, small))

	got, err := s.PickupTask(ctx, []shikijin.Capability{c1, c2})
	require.NoError(t, err)
	require.Equal(t, small.ID, got.ID)
}

func TestStore_Pickup_InsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, second := mustTask(t), mustTask(t)
	require.NoError(t, s.AddTask(ctx, first))
	require.NoError(t, s.AddTask(ctx, second))
	// overwriting keeps the original position
	require.NoError(t, s.AddTask(ctx, first.WithPayload([]byte("v2"))))

	got, err := s.PickupTask(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, []byte("v2"), got.Payload)
}

func TestStore_AssignedTaskNotPickedUp_AbandonReenables(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := shikijin.NewComponentID()
	tk := mustTask(t)
	require.NoError(t, s.AddTask(ctx, tk))

	a, err := s.CreateAssignment(ctx, w, tk)
	require.NoError(t, err)

	_, err = s.PickupTask(ctx, nil)
	require.ErrorIs(t, err, shikijin.ErrNoCapableTask)
	st, err := s.TaskState(ctx, tk.ID)
	require.NoError(t, err)
	require.Equal(t, shikijin.StateAssigned, st)

	require.NoError(t, s.AbandonAssignment(ctx, a))
	got, err := s.PickupTask(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, tk.ID, got.ID)

	// double resolution fails
	err = s.AbandonAssignment(ctx, a)
	require.ErrorIs(t, err, shikijin.ErrAssignmentNotFound)
	err = s.CompleteAssignment(ctx, a)
	require.ErrorIs(t, err, shikijin.ErrAssignmentNotFound)
	require.ErrorIs(t, err, shikijin.ErrNotFound)
}

func TestStore_StaleAssignmentRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk := mustTask(t)
	require.NoError(t, s.AddTask(ctx, tk))

	a1, err := s.CreateAssignment(ctx, shikijin.NewComponentID(), tk)
	require.NoError(t, err)
	require.NoError(t, s.AbandonAssignment(ctx, a1))
	a2, err := s.CreateAssignment(ctx, shikijin.NewComponentID(), tk)
	require.NoError(t, err)

	require.ErrorIs(t, s.CompleteAssignment(ctx, a1), shikijin.ErrAssignmentNotFound)
	require.NoError(t, s.CompleteAssignment(ctx, a2))
}

func TestStore_NotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetTask(ctx, shikijin.NewTaskID())
	require.ErrorIs(t, err, shikijin.ErrTaskNotFound)
	var nf *shikijin.NotFoundError
	require.True(t, errors.As(err, &nf))

	_, err = s.GetBlob(ctx, shikijin.NewBlobID())
	require.ErrorIs(t, err, shikijin.ErrBlobNotFound)

	_, err = s.TaskState(ctx, shikijin.NewTaskID())
	require.ErrorIs(t, err, shikijin.ErrTaskNotFound)

	_, err = s.CreateAssignment(ctx, shikijin.NewComponentID(), mustTask(t))
	require.ErrorIs(t, err, shikijin.ErrTaskNotFound)

	bogus := shikijin.NewAssignment(shikijin.NewComponentID(), shikijin.NewTaskID(), time.Now(), 0)
	require.ErrorIs(t, s.CompleteAssignment(ctx, bogus), shikijin.ErrAssignmentNotFound)
	require.ErrorIs(t, s.AbandonAssignment(ctx, bogus), shikijin.ErrAssignmentNotFound)
}

func TestStore_Blobs(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := shikijin.NewBlob([]byte("hello"))
	require.NoError(t, s.SaveBlob(ctx, b))

	got, err := s.GetBlob(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got.Data)

	// returned data does not alias store state
	got.Data[0] = 'j'
	again, err := s.GetBlob(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), again.Data)

	// overwrite by id
	b2 := b
	b2.Data = []byte("bye")
	require.NoError(t, s.SaveBlob(ctx, b2))
	again, err = s.GetBlob(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("bye"), again.Data)
}

func TestStore_RequiresFixedAtAdmission(t *testing.T) {
	s := New()
	ctx := context.Background()
	c1 := shikijin.NewCapability("c1")
	tk := mustTask(t, c1)
	require.NoError(t, s.AddTask(ctx, tk))

	// mutating the caller's slice does not change the stored requirement
	tk.Requires[0] = shikijin.NewCapability("other")
	got, err := s.PickupTask(ctx, []shikijin.Capability{c1})
	require.NoError(t, err)
	require.Equal(t, c1.ID, got.Requires[0].ID)
}

func TestStore_ListTasks(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b, c := mustTask(t), mustTask(t), mustTask(t)
	for _, tk := range []shikijin.Task{a, b, c} {
		require.NoError(t, s.AddTask(ctx, tk))
	}
	asg, err := s.CreateAssignment(ctx, shikijin.NewComponentID(), b)
	require.NoError(t, err)
	done, err := s.CreateAssignment(ctx, shikijin.NewComponentID(), c)
	require.NoError(t, err)
	require.NoError(t, s.CompleteAssignment(ctx, done))

	pending, err := s.ListTasks(ctx, shikijin.StatePending, nil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, a.ID, pending[0].ID)

	assigned, err := s.ListTasks(ctx, shikijin.StateAssigned, func(tk *shikijin.Task) bool { return tk.ID == asg.TaskID })
	require.NoError(t, err)
	require.Len(t, assigned, 1)

	completed, err := s.ListTasks(ctx, shikijin.StateCompleted, nil)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, c.ID, completed[0].ID)

	_, err = s.ListTasks(ctx, shikijin.State("weird"), nil)
	require.ErrorIs(t, err, shikijin.ErrUnknownState)
}

func TestStore_LeaseExpiry(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	s := New(WithLeaseTTL(10*time.Second), WithClock(clock))
	ctx := context.Background()
	tk := mustTask(t)
	require.NoError(t, s.AddTask(ctx, tk))

	_, a, err := s.LeaseTask(ctx, shikijin.NewComponentID(), nil)
	require.NoError(t, err)
	require.Equal(t, shikijin.FromTime(clock().Add(10*time.Second)), a.ExpiresAt)

	advance(5 * time.Second)
	_, err = s.PickupTask(ctx, nil)
	require.ErrorIs(t, err, shikijin.ErrNoCapableTask)

	advance(6 * time.Second)
	got, err := s.PickupTask(ctx, nil)
	require.NoError(t, err, "expired lease should be reclaimed lazily on pickup")
	require.Equal(t, tk.ID, got.ID)

	// the worker holding the expired lease can no longer resolve it
	require.ErrorIs(t, s.CompleteAssignment(ctx, a), shikijin.ErrAssignmentNotFound)

	_, a2, err := s.LeaseTask(ctx, shikijin.NewComponentID(), nil)
	require.NoError(t, err)
	advance(11 * time.Second)
	n, err := s.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.ErrorIs(t, s.AbandonAssignment(ctx, a2), shikijin.ErrAssignmentNotFound)
}

func TestStore_AtMostOneLease_PickupThenAssign(t *testing.T) {
	s := New()
	ctx := context.Background()
	tk := mustTask(t)
	require.NoError(t, s.AddTask(ctx, tk))

	var wins, conflicts, misses atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := s.PickupTask(ctx, nil)
			if err != nil {
				misses.Add(1)
				return
			}
			_, err = s.CreateAssignment(ctx, shikijin.NewComponentID(), got)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, shikijin.ErrAssignmentConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, int32(63), conflicts.Load()+misses.Load())
}

func TestStore_AtMostOneLease_LeaseTask(t *testing.T) {
	s := New()
	ctx := context.Background()
	const tasks = 20
	for i := 0; i < tasks; i++ {
		require.NoError(t, s.AddTask(ctx, mustTask(t)))
	}

	var mu sync.Mutex
	seen := make(map[shikijin.TaskID]int)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := shikijin.NewComponentID()
			for {
				tk, _, err := s.LeaseTask(ctx, w, nil)
				if errors.Is(err, shikijin.ErrNoCapableTask) {
					return
				}
				if err != nil {
					t.Errorf("lease: %v", err)
					return
				}
				mu.Lock()
				seen[tk.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, tasks)
	for id, n := range seen {
		require.Equal(t, 1, n, "task %s leased %d times", id, n)
	}
}

func TestStore_ActiveAssignments(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, second := mustTask(t), mustTask(t)
	require.NoError(t, s.AddTask(ctx, first))
	require.NoError(t, s.AddTask(ctx, second))

	active, err := s.ActiveAssignments(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	a2, err := s.CreateAssignment(ctx, shikijin.NewComponentID(), second)
	require.NoError(t, err)
	a1, err := s.CreateAssignment(ctx, shikijin.NewComponentID(), first)
	require.NoError(t, err)

	// listed in pickup order
	active, err = s.ActiveAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, []shikijin.Assignment{a1, a2}, active)

	require.NoError(t, s.CompleteAssignment(ctx, a1))
	active, err = s.ActiveAssignments(ctx)
	require.NoError(t, err)
	require.Equal(t, []shikijin.Assignment{a2}, active)
}
