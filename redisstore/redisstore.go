// Package redisstore is a Store backend kept in Redis so that worker processes
// on several hosts can share one task store. Leasing is per-task
// compare-and-swap: an assignment is written with HSETNX inside a Lua script,
// so of two racing callers exactly one wins.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	shikijin "github.com/shikijin/shikijin-go"
	"github.com/shikijin/shikijin-go/internal/keys"
)

const (
	defaultNamespace = "default"
	scanBatch        = 128
	leaseCandidates  = 16
	leaseAttempts    = 4
	reclaimPerCall   = 256
)

// Store is a Redis-backed shikijin.Store.
type Store struct {
	rdb  redis.UniversalClient
	k    keys.Namespace
	enc  shikijin.Encoder
	id   shikijin.ComponentID
	name string
	ns   string
	log  shikijin.Logger
	ttl  time.Duration
	now  func() time.Time
}

var _ shikijin.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithNamespace isolates the store's keys under ns. Default "default".
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.ns = ns
		}
	}
}

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

// WithClock replaces time.Now. Every process sharing a namespace should use a
// comparable clock since expiry is stored as an absolute time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store on top of rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:  rdb,
		enc:  &shikijin.JSONEncoder{},
		id:   shikijin.NewComponentID(),
		name: "redisstore",
		ns:   defaultNamespace,
		log:  shikijin.DiscardLogger,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.k = keys.For(s.ns)
	s.log = shikijin.WithComponent(s.log, s.name)
	return s
}

func (s *Store) ID() shikijin.ComponentID { return s.id }
func (s *Store) Name() string             { return s.name }

func (s *Store) AddTask(ctx context.Context, t shikijin.Task) error {
	raw, err := s.enc.Encode(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	return addScript.Run(ctx, s.rdb, []string{s.k.Tasks, s.k.Order, s.k.Seq, s.k.Completed}, t.ID.String(), raw).Err()
}

func (s *Store) GetTask(ctx context.Context, id shikijin.TaskID) (shikijin.Task, error) {
	raw, err := s.rdb.HGet(ctx, s.k.Tasks, id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		s.log.Debugf("task %s not found", id)
		return shikijin.Task{}, shikijin.TaskNotFound(id)
	}
	if err != nil {
		return shikijin.Task{}, err
	}
	var t shikijin.Task
	if err := s.enc.Decode(raw, &t); err != nil {
		return shikijin.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) PickupTask(ctx context.Context, caps []shikijin.Capability) (shikijin.Task, error) {
	if _, err := s.ReclaimExpired(ctx); err != nil {
		return shikijin.Task{}, err
	}
	cands, err := s.candidates(ctx, caps, 1)
	if err != nil {
		return shikijin.Task{}, err
	}
	if len(cands) == 0 {
		return shikijin.Task{}, shikijin.ErrNoCapableTask
	}
	return cands[0], nil
}

func (s *Store) TaskState(ctx context.Context, id shikijin.TaskID) (shikijin.State, error) {
	field := id.String()
	pipe := s.rdb.Pipeline()
	exists := pipe.HExists(ctx, s.k.Tasks, field)
	leased := pipe.HExists(ctx, s.k.Assignments, field)
	done := pipe.SIsMember(ctx, s.k.Completed, field)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	switch {
	case !exists.Val():
		return "", shikijin.TaskNotFound(id)
	case leased.Val():
		return shikijin.StateAssigned, nil
	case done.Val():
		return shikijin.StateCompleted, nil
	default:
		return shikijin.StatePending, nil
	}
}

func (s *Store) ListTasks(ctx context.Context, state shikijin.State, filter shikijin.TaskFilter) ([]shikijin.Task, error) {
	if _, err := shikijin.ParseState(string(state)); err != nil {
		return nil, err
	}
	var out []shikijin.Task
	err := s.scan(ctx, func(t shikijin.Task, st shikijin.State) bool {
		if st == state && (filter == nil || filter(&t)) {
			out = append(out, t)
		}
		return true
	})
	return out, err
}

func (s *Store) CreateAssignment(ctx context.Context, worker shikijin.ComponentID, t shikijin.Task) (shikijin.Assignment, error) {
	return s.assign(ctx, worker, t.ID, false)
}

func (s *Store) CompleteAssignment(ctx context.Context, a shikijin.Assignment) error {
	return s.resolve(ctx, a, true)
}

func (s *Store) AbandonAssignment(ctx context.Context, a shikijin.Assignment) error {
	return s.resolve(ctx, a, false)
}

// LeaseTask scans for capable pending tasks and tries to lease them in order.
// Candidates lost to concurrent callers are skipped; if every attempt loses,
// ErrAssignmentConflict is returned and the caller should retry.
func (s *Store) LeaseTask(ctx context.Context, worker shikijin.ComponentID, caps []shikijin.Capability) (shikijin.Task, shikijin.Assignment, error) {
	for attempt := 0; attempt < leaseAttempts; attempt++ {
		if _, err := s.ReclaimExpired(ctx); err != nil {
			return shikijin.Task{}, shikijin.Assignment{}, err
		}
		cands, err := s.candidates(ctx, caps, leaseCandidates)
		if err != nil {
			return shikijin.Task{}, shikijin.Assignment{}, err
		}
		if len(cands) == 0 {
			return shikijin.Task{}, shikijin.Assignment{}, shikijin.ErrNoCapableTask
		}
		for _, t := range cands {
			a, err := s.assign(ctx, worker, t.ID, true)
			if err == nil {
				return t, a, nil
			}
			if errors.Is(err, shikijin.ErrAssignmentConflict) || errors.Is(err, shikijin.ErrTaskNotFound) {
				continue
			}
			return shikijin.Task{}, shikijin.Assignment{}, err
		}
	}
	return shikijin.Task{}, shikijin.Assignment{}, fmt.Errorf("%w: lost %d lease attempts", shikijin.ErrAssignmentConflict, leaseAttempts)
}

func (s *Store) ReclaimExpired(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	now := int64(shikijin.FromTime(s.now()))
	n := 0
	// drain up to N per call to avoid long loops
	for i := 0; i < reclaimPerCall; i++ {
		res, err := reclaimOneScript.Run(ctx, s.rdb, []string{s.k.LeaseExpiry, s.k.Assignments, s.k.AssignmentRecords}, now).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reclaim: %w", err)
		}
		s.log.Warnf("lease expired: task=%v", res)
		n++
	}
	return n, nil
}

func (s *Store) ActiveAssignments(ctx context.Context) ([]shikijin.Assignment, error) {
	vals, err := s.rdb.HVals(ctx, s.k.AssignmentRecords).Result()
	if err != nil {
		return nil, err
	}
	out := make([]shikijin.Assignment, 0, len(vals))
	for _, v := range vals {
		var a shikijin.Assignment
		if err := s.enc.Decode([]byte(v), &a); err != nil {
			s.log.Warnf("skipping undecodable assignment record: err=%v", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) SaveBlob(ctx context.Context, b shikijin.Blob) error {
	raw, err := s.enc.Encode(b)
	if err != nil {
		return fmt.Errorf("encode blob %s: %w", b.ID, err)
	}
	return s.rdb.HSet(ctx, s.k.Blobs, b.ID.String(), raw).Err()
}

func (s *Store) GetBlob(ctx context.Context, id shikijin.BlobID) (shikijin.Blob, error) {
	raw, err := s.rdb.HGet(ctx, s.k.Blobs, id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		s.log.Debugf("blob %s not found", id)
		return shikijin.Blob{}, shikijin.BlobNotFound(id)
	}
	if err != nil {
		return shikijin.Blob{}, err
	}
	var b shikijin.Blob
	if err := s.enc.Decode(raw, &b); err != nil {
		return shikijin.Blob{}, fmt.Errorf("decode blob %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) assign(ctx context.Context, worker shikijin.ComponentID, id shikijin.TaskID, pendingOnly bool) (shikijin.Assignment, error) {
	a := shikijin.NewAssignment(worker, id, s.now(), s.ttl)
	raw, err := s.enc.Encode(a)
	if err != nil {
		return shikijin.Assignment{}, fmt.Errorf("encode assignment %s: %w", a.ID, err)
	}
	only := "0"
	if pendingOnly {
		only = "1"
	}
	res, err := assignScript.Run(ctx, s.rdb,
		[]string{s.k.Tasks, s.k.Assignments, s.k.AssignmentRecords, s.k.LeaseExpiry, s.k.Completed},
		id.String(), a.ID.String(), raw, int64(a.ExpiresAt), only,
	).Int()
	if err != nil {
		return shikijin.Assignment{}, fmt.Errorf("assign task %s: %w", id, err)
	}
	switch res {
	case 1:
		return a, nil
	case -1:
		return shikijin.Assignment{}, shikijin.TaskNotFound(id)
	default:
		return shikijin.Assignment{}, shikijin.AssignmentConflict(id)
	}
}

func (s *Store) resolve(ctx context.Context, a shikijin.Assignment, complete bool) error {
	flag := "0"
	if complete {
		flag = "1"
	}
	res, err := resolveScript.Run(ctx, s.rdb,
		[]string{s.k.Assignments, s.k.AssignmentRecords, s.k.LeaseExpiry, s.k.Completed},
		a.TaskID.String(), a.ID.String(), flag,
	).Int()
	if err != nil {
		return fmt.Errorf("resolve assignment %s: %w", a.ID, err)
	}
	if res == 0 {
		s.log.Debugf("assignment %s for task %s not found", a.ID, a.TaskID)
		return shikijin.AssignmentNotFound(a.ID)
	}
	return nil
}

// candidates returns up to limit pending tasks matching caps, in pickup order.
func (s *Store) candidates(ctx context.Context, caps []shikijin.Capability, limit int) ([]shikijin.Task, error) {
	var out []shikijin.Task
	err := s.scan(ctx, func(t shikijin.Task, st shikijin.State) bool {
		if st == shikijin.StatePending && t.CapableOf(caps) {
			out = append(out, t)
		}
		return len(out) < limit
	})
	return out, err
}

// scan walks tasks in pickup order in batches, calling fn with each task and
// its state until fn returns false.
func (s *Store) scan(ctx context.Context, fn func(shikijin.Task, shikijin.State) bool) error {
	for start := int64(0); ; start += scanBatch {
		ids, err := s.rdb.ZRange(ctx, s.k.Order, start, start+scanBatch-1).Result()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		pipe := s.rdb.Pipeline()
		records := pipe.HMGet(ctx, s.k.Tasks, ids...)
		leases := pipe.HMGet(ctx, s.k.Assignments, ids...)
		members := make([]any, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		done := pipe.SMIsMember(ctx, s.k.Completed, members...)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}

		raws, leased, completed := records.Val(), leases.Val(), done.Val()
		for i := range ids {
			raw, ok := raws[i].(string)
			if !ok {
				continue
			}
			var t shikijin.Task
			if err := s.enc.Decode([]byte(raw), &t); err != nil {
				s.log.Warnf("skipping undecodable task %s: err=%v", ids[i], err)
				continue
			}
			st := shikijin.StatePending
			if leased[i] != nil {
				st = shikijin.StateAssigned
			} else if completed[i] {
				st = shikijin.StateCompleted
			}
			if !fn(t, st) {
				return nil
			}
		}
		if len(ids) < scanBatch {
			return nil
		}
	}
}
