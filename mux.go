package shikijin

import "context"

// HandlerFunc executes a task and returns the follow-on tasks it produced.
// Follow-ons are admitted to the store before the task's lease is completed.
type HandlerFunc func(ctx context.Context, t Task) ([]Task, error)

// Middleware is a function that wraps a HandlerFunc to provide cross-cutting concerns.
type Middleware func(HandlerFunc) HandlerFunc

type handler struct {
	exec HandlerFunc
}

// Mux routes tasks to their respective handlers based on task type.
type Mux struct {
	handlers    map[string]handler
	middlewares []Middleware
}

// NewMux creates a new Task Mux.
func NewMux() *Mux {
	return &Mux{
		handlers:    make(map[string]handler),
		middlewares: []Middleware{},
	}
}

// Handle registers a handler for a specific task type.
func (m *Mux) Handle(taskType string, fn HandlerFunc) {
	m.handlers[taskType] = handler{
		exec: fn,
	}
}

// Use adds middleware(s) to the mux. Middlewares are executed in the order they are added.
func (m *Mux) Use(mw Middleware) {
	m.middlewares = append(m.middlewares, mw)
}

// Types returns the registered task types.
func (m *Mux) Types() []string {
	out := make([]string, 0, len(m.handlers))
	for k := range m.handlers {
		out = append(out, k)
	}
	return out
}

// Execute runs the handler registered for t.Type through the middleware chain.
func (m *Mux) Execute(ctx context.Context, t Task) ([]Task, error) {
	h, ok := m.handlers[t.Type]
	if !ok {
		return nil, ErrNoHandler
	}
	return m.wrapHandler(h.exec)(ctx, t)
}

func (m *Mux) wrapHandler(h HandlerFunc) HandlerFunc {
	for i := len(m.middlewares) - 1; i >= 0; i-- {
		h = m.middlewares[i](h)
	}
	return h
}
