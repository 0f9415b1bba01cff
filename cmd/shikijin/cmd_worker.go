package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	shikijin "github.com/shikijin/shikijin-go"
	"github.com/spf13/cobra"
)

// newWorkerCmd creates the "shikijin worker" subcommand.
func newWorkerCmd(configPath *string) *cobra.Command {
	var (
		name  string
		caps  []string
		drain bool
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker until interrupted",
		Long:  "Lease tasks matching the worker's capabilities, run them with the\nbuilt-in handlers and admit their follow-on tasks. With --drain the\nworker exits once no capable task is left.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			wc := e.cfg.Worker
			if name != "" {
				wc.Name = name
			}
			wc.Capabilities = append(wc.Capabilities, caps...)

			w := shikijin.NewWorker(e.store, shikijin.WorkerConfig{
				Name:            wc.Name,
				Capabilities:    capabilities(wc.Capabilities),
				Concurrency:     wc.Concurrency,
				PollInterval:    wc.PollInterval.Std(),
				ReclaimInterval: wc.ReclaimInterval.Std(),
				Logger:          e.log,
			}, builtinMux(e.store, e.log))

			if drain {
				return drainWorker(ctx, w)
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&name, "worker-name", "", "override worker.name")
	cmd.Flags().StringSliceVar(&caps, "capability", nil, "additional capability names (repeatable)")
	cmd.Flags().BoolVar(&drain, "drain", false, "exit when no capable task is pending")
	return cmd
}

// drainAttempts bounds how often a drain run retries one failing task.
const drainAttempts = 3

// drainWorker processes tasks on the calling goroutine until none is capable.
// A task that keeps failing would never let the store run dry, so the run
// stops with its error after drainAttempts failures.
func drainWorker(ctx context.Context, w *shikijin.Worker) error {
	failures := make(map[shikijin.TaskID]int)
	for ctx.Err() == nil {
		err := w.ProcessOne(ctx)
		var te *shikijin.TaskError
		switch {
		case err == nil, errors.Is(err, shikijin.ErrAssignmentConflict):
		case errors.As(err, &te):
			failures[te.TaskID]++
			if failures[te.TaskID] >= drainAttempts {
				return fmt.Errorf("giving up after %d attempts: %w", drainAttempts, err)
			}
		case errors.Is(err, shikijin.ErrNoCapableTask):
			return nil
		default:
			return err
		}
	}
	return nil
}
