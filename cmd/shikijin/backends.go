package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	shikijin "github.com/shikijin/shikijin-go"
	"github.com/shikijin/shikijin-go/internal/config"
	"github.com/shikijin/shikijin-go/memstore"
	"github.com/shikijin/shikijin-go/redisstore"
)

// loggerFactory builds a logger writing to w.
type loggerFactory func(cfg config.Logger, w io.Writer) (shikijin.Logger, error)

// storeFactory builds a store and returns a function releasing its resources.
type storeFactory func(ctx context.Context, cfg config.Store, log shikijin.Logger) (shikijin.Store, func() error, error)

var loggerBackends = map[string]loggerFactory{
	"fmt":  newFmtLogger,
	"json": newJSONLogger,
	"auto": func(cfg config.Logger, w io.Writer) (shikijin.Logger, error) {
		if isTerminal(w) {
			return newFmtLogger(cfg, w)
		}
		return newJSONLogger(cfg, w)
	},
}

var storeBackends = map[string]storeFactory{
	"memory": newMemoryStore,
	"redis":  newRedisStore,
}

func backendNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newFmtLogger(cfg config.Logger, w io.Writer) (shikijin.Logger, error) {
	lv, err := shikijin.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return &shikijin.FmtLogger{Out: w, Err: w, Level: lv}, nil
}

func newJSONLogger(cfg config.Logger, w io.Writer) (shikijin.Logger, error) {
	lv, err := shikijin.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return shikijin.NewJSONLogger(w, cfg.Name, lv), nil
}

func newMemoryStore(_ context.Context, cfg config.Store, log shikijin.Logger) (shikijin.Store, func() error, error) {
	s := memstore.New(
		memstore.WithName(cfg.Name),
		memstore.WithLogger(log),
		memstore.WithLeaseTTL(cfg.LeaseTTL.Std()),
	)
	return s, func() error { return nil }, nil
}

func newRedisStore(ctx context.Context, cfg config.Store, log shikijin.Logger) (shikijin.Store, func() error, error) {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	s := redisstore.New(rdb,
		redisstore.WithNamespace(cfg.Redis.Namespace),
		redisstore.WithName(cfg.Name),
		redisstore.WithLogger(log),
		redisstore.WithLeaseTTL(cfg.LeaseTTL.Std()),
	)
	return s, rdb.Close, nil
}

// env is the logger and store every subcommand works against.
type env struct {
	cfg    config.Config
	log    shikijin.Logger
	store  shikijin.Store
	closer []func() error
}

// openEnv loads settings and builds the configured logger and store. Log
// output goes to logOut unless the settings name a file.
func openEnv(ctx context.Context, configPath string, logOut io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg}

	if cfg.Logger.FilePath != "" {
		f, err := os.OpenFile(cfg.Logger.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		e.closer = append(e.closer, f.Close)
		logOut = f
	}
	mkLog, ok := loggerBackends[cfg.Logger.Type]
	if !ok {
		return nil, fmt.Errorf("unknown logger type %q (want one of %v)", cfg.Logger.Type, backendNames(loggerBackends))
	}
	if e.log, err = mkLog(cfg.Logger, logOut); err != nil {
		_ = e.Close()
		return nil, err
	}

	mkStore, ok := storeBackends[cfg.Store.Type]
	if !ok {
		_ = e.Close()
		return nil, fmt.Errorf("unknown store type %q (want one of %v)", cfg.Store.Type, backendNames(storeBackends))
	}
	st, closeStore, err := mkStore(ctx, cfg.Store, e.log)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.store = st
	e.closer = append(e.closer, closeStore)
	return e, nil
}

func (e *env) Close() error {
	var errs []error
	for i := len(e.closer) - 1; i >= 0; i-- {
		errs = append(errs, e.closer[i]())
	}
	e.closer = nil
	return errors.Join(errs...)
}

// capabilities maps configured names to their name-derived capabilities.
func capabilities(names []string) []shikijin.Capability {
	out := make([]shikijin.Capability, 0, len(names))
	for _, n := range names {
		out = append(out, shikijin.CapabilityNamed(n))
	}
	return out
}
