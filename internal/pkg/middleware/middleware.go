// Package middleware holds the chi middleware of the trigger endpoint and the
// adapter that renders handler errors as coded JSON envelopes.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"videoproc/internal/httpkit"
	"videoproc/internal/pkg/errors"
	"videoproc/internal/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// cloudTraceHeader is set by Google front ends, Pub/Sub push to Cloud Run
// included, as TRACE_ID/SPAN_ID;o=OPTIONS.
const cloudTraceHeader = "X-Cloud-Trace-Context"

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status != 0 {
		return
	}
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// requestID prefers the caller's X-Request-ID, then the Cloud trace ID, and
// otherwise mints a UUID.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	if trace, _, _ := strings.Cut(r.Header.Get(cloudTraceHeader), "/"); strings.TrimSpace(trace) != "" {
		return strings.TrimSpace(trace)
	}
	return uuid.NewString()
}

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// Logging writes one line per request once it completes. The job ID comes
// from the response header the process handler sets.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.code()
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			log.FromContext(r.Context()).
				WithJobID(w.Header().Get(httpkit.JobIDHeader)).
				Log(r.Context(), level, "request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", rec.bytes,
					"duration_ms", time.Since(start).Milliseconds(),
				)
		})
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				log.FromContext(r.Context()).Error("panic recovered",
					"panic", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				httpkit.WriteErr(w, http.StatusInternalServerError, httpkit.ErrorBody{
					Code:      string(errors.CodeInternal),
					Message:   "internal server error",
					RequestID: logger.RequestIDFromContext(r.Context()),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// HandlerFunc is a handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.HandlerFunc, rendering a returned error with
// WriteError.
func Handle(log *logger.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			WriteError(w, r, log, err)
		}
	}
}

// WriteError logs err and answers with its coded envelope. Server-side
// failures log the stack captured where the error was made.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code := errors.GetCode(err)
	status := errors.GetHTTPStatus(err)
	fields := errors.GetFields(err)

	attrs := []any{"code", string(code), "status", status, "error", err.Error()}
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}

	reqLog := log.FromContext(r.Context()).WithJobID(w.Header().Get(httpkit.JobIDHeader))
	if status >= 500 {
		var e *errors.Error
		if errors.As(err, &e) && len(e.Stack) > 0 {
			attrs = append(attrs, "stack", e.StackTrace())
		}
		reqLog.Error("request failed", attrs...)
	} else {
		reqLog.Warn("request rejected", attrs...)
	}

	httpkit.WriteErr(w, status, httpkit.ErrorBody{
		Code:      string(code),
		Message:   err.Error(),
		RequestID: logger.RequestIDFromContext(r.Context()),
		Details:   fields,
	})
}
