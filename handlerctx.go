package shikijin

import (
	"context"

	"github.com/shikijin/shikijin-go/internal/hctx"
)

// CurrentAssignment returns the lease under which the calling handler runs.
// It reports false if the context is not provided by a Worker.
func CurrentAssignment(ctx context.Context) (Assignment, bool) {
	st, ok := hctx.From[Assignment, Task](ctx)
	if !ok || st == nil {
		return Assignment{}, false
	}
	return st.Assignment, true
}

// Spawn emits follow-on tasks from inside a handler. They are admitted after
// the tasks the handler returns, before the lease is completed; if the handler
// fails they are discarded. It is a no-op if the context is not provided by a Worker.
func Spawn(ctx context.Context, tasks ...Task) {
	st, ok := hctx.From[Assignment, Task](ctx)
	if !ok || st == nil {
		return
	}
	st.Spawn(tasks...)
}
