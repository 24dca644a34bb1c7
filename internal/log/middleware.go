package log

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the request logger, or a default one.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return Default("unknown")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestIDHeader carries the trace id between stations and the proxy.
const RequestIDHeader = "X-Request-ID"

// Middleware tags each request with a request id, stores a logger carrying
// it in the request context, and logs the completed request at a level
// derived from its status code.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if requestID == "" || len(requestID) > 64 {
				requestID = newRequestID()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With(FieldRequestID, requestID)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(NewContext(r.Context(), reqLogger)))

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			fields := NewFields().
				WithComponent(ComponentHTTP).
				WithHTTPRequest(r.Method, r.URL.Path, clientIP(r)).
				WithHTTPResponse(rec.status, time.Since(start).Milliseconds())
			reqLogger.Logger.Log(r.Context(), level, "HTTP request completed",
				append(fields.ToSlice(), FieldSuccess, rec.status < 400)...)
		})
	}
}

func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
