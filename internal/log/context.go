package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ctxKey struct{}

// NewContext returns ctx carrying logger. The trace middleware stores the
// per-request logger this way.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or one wrapping
// slog.Default when there is none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// StructuredLogger writes the request and page records with a fixed set of
// fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogRequest records a finished request. Client errors log at warn and
// server errors at error.
func (sl *StructuredLogger) LogRequest(ctx context.Context, r *http.Request, status int, d time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithHTTPResponse(status, d.Milliseconds(), status < 400).
		WithClientIP(clientIP)
	sl.logger.Log(ctx, level, "HTTP request", fields.ToSlice()...)
}

// LogPageServed logs a rendered page with the route that served it.
func (sl *StructuredLogger) LogPageServed(ctx context.Context, path, route, view string, status int, durationMs int64) {
	fields := NewFields().
		WithRoute(route, view).
		WithOperation(OpRender)
	fields[FieldPath] = path
	fields[FieldStatusCode] = status
	fields[FieldDuration] = durationMs

	sl.logger.DebugContext(ctx, "Page served", fields.ToSlice()...)
}

// LogGuardRedirect records an anonymous visit to a route behind sign-in.
func (sl *StructuredLogger) LogGuardRedirect(ctx context.Context, path, route string) {
	fields := NewFields().WithOperation(OpResolve)
	fields[FieldRoute] = route
	fields[FieldPath] = path
	sl.logger.InfoContext(ctx, "Sign-in required", fields.ToSlice()...)
}
