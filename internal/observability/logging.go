// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

var level = new(slog.LevelVar)

func init() {
	level.Set(slog.LevelInfo)
	GlobalLogger = NewLogger(os.Stderr)
}

// NewLogger builds a JSON logger writing to w at the shared level.
func NewLogger(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{Logger: slog.New(handler)}
}

// SetLevel changes the level of every logger built by NewLogger.
// Unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key for the per-command correlation id.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries a
// correlation id, otherwise a child context with a fresh one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if ExtractCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, GenerateCorrelationID())
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// StoreLogger provides structured logging for store commands.
type StoreLogger struct {
	store  string
	logger *Logger
}

// NewStoreLogger creates a new StoreLogger for the given store.
func NewStoreLogger(store string) *StoreLogger {
	return &StoreLogger{
		store:  store,
		logger: GlobalLogger,
	}
}

func (l *StoreLogger) attrs(ctx context.Context, command string, fields map[string]interface{}) []any {
	attrs := []any{
		slog.String("store", l.store),
		slog.String("command", command),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// LogApplied logs a state transition applied after a successful call.
func (l *StoreLogger) LogApplied(ctx context.Context, command string, fields map[string]interface{}) {
	l.logger.DebugContext(ctx, "store transition applied", l.attrs(ctx, command, fields)...)
}

// LogDiscarded logs a response dropped because a newer request was issued.
func (l *StoreLogger) LogDiscarded(ctx context.Context, command string, seq uint64) {
	l.logger.InfoContext(ctx, "stale response discarded",
		l.attrs(ctx, command, map[string]interface{}{"seq": seq})...)
}

// LogError logs a failed command.
func (l *StoreLogger) LogError(ctx context.Context, command string, err error) {
	l.logger.WarnContext(ctx, "store command failed",
		l.attrs(ctx, command, map[string]interface{}{"error": err.Error()})...)
}

// LogForcedLogout logs a session teardown triggered by an authorization error.
func (l *StoreLogger) LogForcedLogout(ctx context.Context, command string) {
	l.logger.WarnContext(ctx, "session expired, forcing logout", l.attrs(ctx, command, nil)...)
}
