package shikijin

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger defines logging methods used by the library. Implementations should be cheap.
// Default is FmtLogger which writes to stdout/stderr using fmt.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FmtLogger is a minimal logger that prints messages with level prefixes.
// Debug/Info go to Out (stdout when nil); Warn/Error go to Err (stderr when nil).
// Messages below Level are dropped; the zero value prints everything.
type FmtLogger struct {
	Out   io.Writer
	Err   io.Writer
	Level Level
}

// NewFmtLogger creates a new FmtLogger.
func NewFmtLogger() *FmtLogger { return &FmtLogger{} }

func (l FmtLogger) Debugf(format string, args ...any) { l.print(LevelDebug, "[DEBUG] ", format, args) }
func (l FmtLogger) Infof(format string, args ...any)  { l.print(LevelInfo, "[INFO]  ", format, args) }
func (l FmtLogger) Warnf(format string, args ...any)  { l.print(LevelWarn, "[WARN]  ", format, args) }
func (l FmtLogger) Errorf(format string, args ...any) { l.print(LevelError, "[ERROR] ", format, args) }

func (l FmtLogger) print(lv Level, prefix, format string, args []any) {
	if lv < l.Level {
		return
	}
	var w io.Writer
	if lv >= LevelWarn {
		w = l.Err
		if w == nil {
			w = os.Stderr
		}
	} else {
		w = l.Out
		if w == nil {
			w = os.Stdout
		}
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}

// DiscardLogger drops every message.
var DiscardLogger Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}

// Level is a log severity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name; "warn" and "warning" are both accepted.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("shikijin: unknown log level %q", s)
	}
}

type jsonSink struct {
	mu sync.Mutex
	w  io.Writer
}

// JSONLogger writes one JSON object per line with the fields time, level,
// name, component and message. Loggers derived with WithComponent share the
// writer and its lock.
type JSONLogger struct {
	sink      *jsonSink
	enc       Encoder
	name      string
	component string
	level     Level
	now       func() time.Time
}

// NewJSONLogger creates a JSONLogger writing to w. Messages below level are dropped.
func NewJSONLogger(w io.Writer, name string, level Level) *JSONLogger {
	return &JSONLogger{
		sink:  &jsonSink{w: w},
		enc:   &JSONEncoder{},
		name:  name,
		level: level,
		now:   time.Now,
	}
}

type logRecord struct {
	Time      int64  `json:"time"`
	Level     string `json:"level"`
	Name      string `json:"name,omitempty"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// WithComponent returns a logger tagging every record with component.
func (l *JSONLogger) WithComponent(component string) Logger {
	cp := *l
	cp.component = component
	return &cp
}

func (l *JSONLogger) Debugf(format string, args ...any) { l.write(LevelDebug, format, args) }
func (l *JSONLogger) Infof(format string, args ...any)  { l.write(LevelInfo, format, args) }
func (l *JSONLogger) Warnf(format string, args ...any)  { l.write(LevelWarn, format, args) }
func (l *JSONLogger) Errorf(format string, args ...any) { l.write(LevelError, format, args) }

func (l *JSONLogger) write(lv Level, format string, args []any) {
	if lv < l.level {
		return
	}
	b, err := l.enc.Encode(logRecord{
		Time:      l.now().Unix(),
		Level:     lv.String(),
		Name:      l.name,
		Component: l.component,
		Message:   fmt.Sprintf(format, args...),
	})
	if err != nil {
		return
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.w.Write(append(b, '\n'))
}

// WithComponent scopes l to a component name. Loggers that know how to carry
// the name as a field (JSONLogger) do so; others get a "component=<name>" prefix.
func WithComponent(l Logger, component string) Logger {
	if l == nil {
		return DiscardLogger
	}
	if component == "" {
		return l
	}
	if n, ok := l.(interface{ WithComponent(string) Logger }); ok {
		return n.WithComponent(component)
	}
	return prefixLogger{Logger: l, prefix: "component=" + strings.ReplaceAll(component, "%", "%%") + " "}
}

type prefixLogger struct {
	Logger
	prefix string
}

func (p prefixLogger) Debugf(format string, args ...any) { p.Logger.Debugf(p.prefix+format, args...) }
func (p prefixLogger) Infof(format string, args ...any)  { p.Logger.Infof(p.prefix+format, args...) }
func (p prefixLogger) Warnf(format string, args ...any)  { p.Logger.Warnf(p.prefix+format, args...) }
func (p prefixLogger) Errorf(format string, args ...any) { p.Logger.Errorf(p.prefix+format, args...) }
