package runtime

import (
	"context"
	"sync"
	"time"
)

// Logger is a minimal logging interface used internally by the runtime.
// It mirrors the public logger in the root package to avoid an import cycle.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

type Config struct {
	Concurrency int
	// IdleDelay is how long a slot sleeps after a cycle reports no work.
	IdleDelay time.Duration
	Logger    Logger
}

// Cycle runs one unit of work for slot. It returns false when there was
// nothing to do, which makes the slot wait IdleDelay before the next cycle.
type Cycle func(ctx context.Context, slot int) bool

// Maintenance is a periodic background job.
type Maintenance struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Runtime struct {
	cfg     Config
	cycle   Cycle
	maint   []Maintenance
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	log     Logger
}

// New creates a runtime that drives cycle on Concurrency goroutines and runs
// each maintenance job on its own ticker.
func New(cfg Config, cycle Cycle, maint ...Maintenance) *Runtime {
	lg := cfg.Logger
	if lg == nil {
		lg = noopLogger{}
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 50 * time.Millisecond
	}
	return &Runtime{
		cfg:   cfg,
		cycle: cycle,
		maint: maint,
		log:   lg,
	}
}

// Start launches slots and maintenance goroutines. Canceling parent stops
// them as well, but Stop must still be called to wait for them.
func (rt *Runtime) Start(parent context.Context) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		rt.log.Warnf("runtime already started; ignoring Start()")
		return
	}
	rt.started = true
	rt.ctx, rt.cancel = context.WithCancel(parent)
	rt.log.Infof("runtime starting: concurrency=%d maintenance=%d", rt.cfg.Concurrency, len(rt.maint))

	for i := 0; i < rt.cfg.Concurrency; i++ {
		rt.wg.Add(1)
		go func(slot int) {
			defer rt.wg.Done()
			rt.slotLoop(rt.ctx, slot)
		}(i)
	}

	for _, m := range rt.maint {
		if m.Run == nil || m.Interval <= 0 {
			rt.log.Warnf("maintenance %q disabled: interval=%s", m.Name, m.Interval)
			continue
		}
		rt.wg.Add(1)
		go func(m Maintenance) {
			defer rt.wg.Done()
			rt.maintLoop(rt.ctx, m)
		}(m)
	}
}

// Stop cancels the internal context and waits for all goroutines to exit.
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	if !rt.started {
		rt.log.Warnf("runtime not started; ignoring Stop()")
		rt.mu.Unlock()
		return
	}
	rt.started = false
	cancel := rt.cancel
	rt.mu.Unlock()
	rt.log.Infof("runtime stopping")

	cancel()
	rt.wg.Wait()
}

// Running reports whether Start has been called without a matching Stop.
func (rt *Runtime) Running() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.started
}

// CfgConcurrency exposes configured slot concurrency.
func (rt *Runtime) CfgConcurrency() int { return rt.cfg.Concurrency }

func (rt *Runtime) slotLoop(ctx context.Context, slot int) {
	idle := time.NewTimer(0)
	if !idle.Stop() {
		<-idle.C
	}
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rt.cycle(ctx, slot) {
			continue
		}
		idle.Reset(rt.cfg.IdleDelay)
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

func (rt *Runtime) maintLoop(ctx context.Context, m Maintenance) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Run(ctx); err != nil && ctx.Err() == nil {
				rt.log.Warnf("%s: failed err=%v", m.Name, err)
			}
		}
	}
}
