// Package logger wraps log/slog with the attributes the pipeline logs on
// every line: service, component, job, object and stage.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	jobIDKey
)

// Formats accepted in Config.Format. FormatCloud is JSON using the field
// names Cloud Logging reads (severity, message) so Cloud Run picks up levels.
const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatCloud = "cloud"
)

type Config struct {
	Level  string
	Format string
	// Output defaults to os.Stdout.
	Output      io.Writer
	AddSource   bool
	ServiceName string
}

// Logger is a slog.Logger with pipeline-specific helpers.
type Logger struct {
	*slog.Logger
}

func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr(format == FormatCloud),
	}

	var h slog.Handler
	if format == FormatText {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	l := slog.New(h)
	if cfg.ServiceName != "" {
		l = l.With(slog.String("service", cfg.ServiceName))
	}
	return &Logger{Logger: l}
}

// NewDefault is the logger used before configuration is loaded.
func NewDefault() *Logger {
	return New(Config{Level: "info", Format: FormatJSON, ServiceName: "videoproc"})
}

// Discard drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

func (l *Logger) with(key, value string) *Logger {
	if value == "" {
		return l
	}
	return &Logger{Logger: l.Logger.With(slog.String(key, value))}
}

func (l *Logger) WithRequestID(id string) *Logger   { return l.with("request_id", id) }
func (l *Logger) WithJobID(id string) *Logger       { return l.with("job_id", id) }
func (l *Logger) WithComponent(name string) *Logger { return l.with("component", name) }
func (l *Logger) WithObject(object string) *Logger  { return l.with("object", object) }
func (l *Logger) WithStage(stage string) *Logger    { return l.with("stage", stage) }

// FromContext adds the request and job IDs carried by ctx.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	return l.WithRequestID(RequestIDFromContext(ctx)).WithJobID(JobIDFromContext(ctx))
}

// Fatal logs msg with err at error level and exits.
func (l *Logger) Fatal(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.Error(msg, args...)
	os.Exit(1)
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func ContextWithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func JobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}

// parseLevel accepts slog's names (any case) plus "warning"; anything else
// is info.
func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if level == "" || lvl.UnmarshalText([]byte(level)) != nil {
		return slog.LevelInfo
	}
	return lvl
}

func replaceAttr(cloud bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
			}
		case slog.LevelKey:
			if cloud {
				a.Key = "severity"
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= slog.LevelWarn && lvl < slog.LevelError {
					a.Value = slog.StringValue("WARNING")
				}
			}
		case slog.MessageKey:
			if cloud {
				a.Key = "message"
			}
		}
		return a
	}
}
