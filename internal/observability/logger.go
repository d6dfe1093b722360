package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"shoppersense/internal/config"
)

func NewLogger(cfg config.LoggerConfig) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo builds the service logger on w. The CLI logs to stderr so
// report output on stdout stays machine readable. Records logged with a
// request context carry its request id and trace id.
func NewLoggerTo(w io.Writer, cfg config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.Level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(contextHandler{handler})
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type contextHandler struct {
	slog.Handler
}

// Handle adds request_id and trace_id from ctx unless the record already
// carries them.
func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	var hasRequest, hasTrace bool
	rec.Attrs(func(a slog.Attr) bool {
		hasRequest = hasRequest || a.Key == "request_id"
		hasTrace = hasTrace || a.Key == "trace_id"
		return true
	})
	if id := GetRequestID(ctx); id != "" && !hasRequest {
		rec.AddAttrs(slog.String("request_id", id))
	}
	if span := GetSpan(ctx); span != nil && !hasTrace {
		rec.AddAttrs(slog.String("trace_id", span.TraceID))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

type contextKey string

const RequestIDKey contextKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
