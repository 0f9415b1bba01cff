package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	shikijin "github.com/shikijin/shikijin-go"
)

// fanoutPayload asks the fanout handler for Count tasks of Type carrying Payload.
type fanoutPayload struct {
	Count   int    `json:"count"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	// Requires names capabilities the spawned tasks need.
	Requires []string `json:"requires,omitempty"`
}

type failPayload struct {
	Message string `json:"message"`
}

// builtinMux registers the handlers shipped with the CLI.
func builtinMux(store shikijin.BlobStore, log shikijin.Logger) *shikijin.Mux {
	mux := shikijin.NewMux()
	mux.Use(logTasks(log))

	mux.Handle("echo", func(_ context.Context, t shikijin.Task) ([]shikijin.Task, error) {
		log.Infof("echo: task=%s payload=%s", t.ID, t.Payload)
		return nil, nil
	})

	mux.Handle("fanout", func(_ context.Context, t shikijin.Task) ([]shikijin.Task, error) {
		var p fanoutPayload
		if err := t.Decode(&p); err != nil {
			return nil, fmt.Errorf("fanout payload: %w", err)
		}
		if p.Type == "" {
			p.Type = "echo"
		}
		out := make([]shikijin.Task, 0, p.Count)
		for i := 0; i < p.Count; i++ {
			child, err := shikijin.NewTask(p.Type, p.Payload, shikijin.Requires(capabilities(p.Requires)...))
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
		return out, nil
	})

	// store_blob keeps the raw payload as a blob and emits an echo task naming it.
	mux.Handle("store_blob", func(ctx context.Context, t shikijin.Task) ([]shikijin.Task, error) {
		b := shikijin.NewBlob(t.Payload)
		if err := store.SaveBlob(ctx, b); err != nil {
			return nil, err
		}
		next, err := shikijin.NewTask("echo", map[string]string{"blob": b.ID.String()})
		if err != nil {
			return nil, err
		}
		return []shikijin.Task{next}, nil
	})

	mux.Handle("fail", func(_ context.Context, t shikijin.Task) ([]shikijin.Task, error) {
		var p failPayload
		_ = t.Decode(&p)
		if p.Message == "" {
			p.Message = "requested failure"
		}
		return nil, errors.New(p.Message)
	})
	return mux
}

// logTasks logs each task's duration at debug level.
func logTasks(log shikijin.Logger) shikijin.Middleware {
	return func(next shikijin.HandlerFunc) shikijin.HandlerFunc {
		return func(ctx context.Context, t shikijin.Task) ([]shikijin.Task, error) {
			start := time.Now()
			out, err := next(ctx, t)
			log.Debugf("handled: task=%s type=%s follow_ons=%d took=%s err=%v", t.ID, t.Type, len(out), time.Since(start), err)
			return out, err
		}
	}
}
