package shikijin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shikijin/shikijin-go/internal/hctx"
	rtm "github.com/shikijin/shikijin-go/internal/runtime"
)

const (
	defaultPollInterval    = 50 * time.Millisecond
	defaultReclaimInterval = 200 * time.Millisecond
)

// WorkerConfig defines the configuration for a Worker.
type WorkerConfig struct {
	// Name identifies the worker in logs.
	Name string
	// Capabilities are matched against each task's required capabilities.
	Capabilities []Capability
	// Concurrency is the number of goroutines leasing and executing tasks.
	// Defaults to 1.
	Concurrency int
	// PollInterval is how long a goroutine waits after finding no capable task.
	PollInterval time.Duration
	// ReclaimInterval is how often expired leases are returned to pending.
	// Negative disables the periodic sweep; pickup still reclaims lazily.
	ReclaimInterval time.Duration
	// Logger is the logger used for worker events.
	Logger Logger
}

// Worker repeatedly leases capable tasks from a Store, runs them through a Mux,
// admits their follow-on tasks and resolves the lease.
type Worker struct {
	id    ComponentID
	name  string
	caps  []Capability
	store Store
	mux   *Mux
	rt    *rtm.Runtime
	mu    sync.Mutex
	start bool
	log   Logger
}

var _ Component = (*Worker)(nil)

// NewWorker creates a worker bound to store.
func NewWorker(store Store, cfg WorkerConfig, mux *Mux) *Worker {
	if cfg.Name == "" {
		cfg.Name = "worker"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ReclaimInterval == 0 {
		cfg.ReclaimInterval = defaultReclaimInterval
	}
	if mux == nil {
		mux = NewMux()
	}
	l := cfg.Logger
	if l == nil {
		l = NewFmtLogger()
	}
	w := &Worker{
		id:    NewComponentID(),
		name:  cfg.Name,
		caps:  slices.Clone(cfg.Capabilities),
		store: store,
		mux:   mux,
		log:   WithComponent(l, cfg.Name),
	}

	var maint []rtm.Maintenance
	if cfg.ReclaimInterval > 0 {
		maint = append(maint, rtm.Maintenance{
			Name:     "reclaimer",
			Interval: cfg.ReclaimInterval,
			Run: func(ctx context.Context) error {
				_, err := store.ReclaimExpired(ctx)
				return err
			},
		})
	}
	rtc := rtm.Config{
		Concurrency: cfg.Concurrency,
		IdleDelay:   cfg.PollInterval,
		Logger:      w.log,
	}
	w.rt = rtm.New(rtc, w.cycle, maint...)
	return w
}

func (w *Worker) ID() ComponentID { return w.id }
func (w *Worker) Name() string    { return w.name }

// Capabilities returns a copy of the worker's capability set.
func (w *Worker) Capabilities() []Capability { return slices.Clone(w.caps) }

// Start launches the worker goroutines. It is idempotent and non-blocking.
func (w *Worker) Start() { w.startWith(context.Background()) }

func (w *Worker) startWith(ctx context.Context) {
	w.mu.Lock()
	if w.start {
		w.log.Warnf("worker already started; ignoring Start()")
		w.mu.Unlock()
		return
	}
	w.start = true
	w.mu.Unlock()
	w.log.Infof("starting worker: id=%s capabilities=%v concurrency=%d", w.id, w.caps, w.rt.CfgConcurrency())
	w.rt.Start(ctx)
}

// Stop shuts the worker down, waiting for in-flight tasks to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.start {
		w.log.Warnf("worker not started; ignoring Stop()")
		w.mu.Unlock()
		return
	}
	w.start = false
	w.mu.Unlock()
	w.log.Infof("stopping worker: id=%s", w.id)
	w.rt.Stop()
}

// Run starts the worker and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.startWith(ctx)
	<-ctx.Done()
	w.Stop()
	return nil
}

// ProcessOne leases one capable task and runs it to resolution.
//
// Follow-on tasks are admitted before the lease is completed. If the handler
// fails or panics, or a follow-on cannot be admitted, the lease is abandoned
// and a *TaskError is returned. Store errors from leasing are returned as is,
// including ErrNoCapableTask and ErrAssignmentConflict.
func (w *Worker) ProcessOne(ctx context.Context) error {
	t, a, err := w.store.LeaseTask(ctx, w.id, w.caps)
	if err != nil {
		return err
	}
	w.log.Debugf("leased: task=%s type=%s assignment=%s", t.ID, t.Type, a.ID)

	if err := w.execute(ctx, t, a); err != nil {
		if errors.Is(err, ErrNoHandler) {
			w.log.Warnf("no handler for task: worker=%s worker_id=%s task=%s type=%s", w.name, w.id, t.ID, t.Type)
		} else {
			w.log.Errorf("task failed: worker=%s worker_id=%s task=%s type=%s err=%v", w.name, w.id, t.ID, t.Type, err)
		}
		// the lease must be released even when ctx is already canceled
		if aerr := w.store.AbandonAssignment(context.WithoutCancel(ctx), a); aerr != nil {
			w.log.Errorf("abandon failed: task=%s assignment=%s err=%v", t.ID, a.ID, aerr)
		}
		return &TaskError{TaskID: t.ID, AssignmentID: a.ID, Err: err}
	}

	if err := w.store.CompleteAssignment(context.WithoutCancel(ctx), a); err != nil {
		return fmt.Errorf("complete task %s: %w", t.ID, err)
	}
	w.log.Debugf("processed: task=%s type=%s", t.ID, t.Type)
	return nil
}

func (w *Worker) execute(ctx context.Context, t Task, a Assignment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	st := hctx.New[Assignment, Task](a)
	out, err := w.mux.Execute(hctx.WithState(ctx, st), t)
	if err != nil {
		return err
	}
	out = slices.Concat(out, st.Spawned())
	for _, f := range out {
		if err := w.store.AddTask(ctx, f); err != nil {
			return fmt.Errorf("admit follow-on %s: %w", f.ID, err)
		}
	}
	return nil
}

// cycle adapts ProcessOne to the runtime: it reports false when the slot
// should wait before polling again.
func (w *Worker) cycle(ctx context.Context, _ int) bool {
	err := w.ProcessOne(ctx)
	var te *TaskError
	switch {
	case err == nil, errors.As(err, &te):
		return true
	case errors.Is(err, ErrAssignmentConflict):
		return true
	case errors.Is(err, ErrNoCapableTask):
		return false
	case ctx.Err() != nil:
		return false
	default:
		w.log.Errorf("worker cycle failed: worker=%s err=%v", w.name, err)
		return false
	}
}
