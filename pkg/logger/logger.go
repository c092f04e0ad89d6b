// Package logger is the structured JSON logger used across the vetting
// service. One line per entry, level-filtered, with fields accumulated
// through With and carried via context between the HTTP layer and the
// handlers underneath it.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level filters log output; entries below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel reads a level name case-insensitively; anything it does not
// recognize becomes Info so a typo in LOG_LEVEL never silences the app.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Field is one key-value pair attached to an entry.
type Field struct {
	Key   string
	Value any
}

// F builds an arbitrary field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }

// Err renders the error message under the "error" key; nil stays nil so
// the key still appears on conditional paths.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Options configures a Logger.
type Options struct {
	// Output receives one JSON line per entry. Defaults to stdout.
	Output io.Writer

	// Level is the minimum level emitted.
	Level Level

	// AddCaller appends file:line of the log call site.
	AddCaller bool

	// CallerSkip lifts the reported call site for wrappers.
	CallerSkip int
}

// DefaultOptions is Info to stdout with call sites.
func DefaultOptions() Options {
	return Options{Output: os.Stdout, Level: LevelInfo, AddCaller: true}
}

// Logger writes structured entries. A Logger is immutable; With and the
// With* helpers return derived loggers sharing the same output.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  Level
	base   []Field
	caller bool
	skip   int
}

// New builds a Logger from opts.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:     &sync.Mutex{},
		out:    out,
		level:  opts.Level,
		caller: opts.AddCaller,
		skip:   opts.CallerSkip,
	}
}

// Default builds a Logger from DefaultOptions.
func Default() *Logger {
	return New(DefaultOptions())
}

// With derives a Logger carrying the extra fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	d := *l
	d.base = append(append(make([]Field, 0, len(l.base)+len(fields)), l.base...), fields...)
	return &d
}

// WithLevel derives a Logger with a different minimum level.
func (l *Logger) WithLevel(level Level) *Logger {
	d := *l
	d.level = level
	return &d
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// Fatal logs the entry and exits.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.log(LevelFatal, msg, fields)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.base)+len(fields)+4)
	for _, f := range l.base {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg

	if l.caller {
		if _, file, line, ok := runtime.Caller(2 + l.skip); ok {
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			entry["caller"] = fmt.Sprintf("%s:%d", file, line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		line = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"logger_error":%q}`,
			level.String(), msg, err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(line)
	l.out.Write([]byte("\n"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Context propagation
// ──────────────────────────────────────────────────────────────────────────────

type ctxKey struct{}

// WithContext attaches l to the context.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the attached logger, or a default one so call sites
// never nil-check.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// RequestIDKey is the field key the HTTP layer uses for request tracing.
const RequestIDKey = "request_id"

// WithRequestID derives a Logger tagged with the request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// ──────────────────────────────────────────────────────────────────────────────
// Vetting field helpers
// ──────────────────────────────────────────────────────────────────────────────

func ApplicationID(id string) Field { return String("application_id", id) }
func SessionID(id string) Field     { return String("session_id", id) }
func Email(email string) Field      { return String("email", email) }
func Score(score float64) Field     { return Float64("score", score) }
func Attempt(n int) Field           { return Int("attempt", n) }
func Status(status string) Field    { return String("status", status) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
