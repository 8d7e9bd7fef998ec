package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logger returns an HTTP middleware that logs every request using structured
// logging: method, path, status, response size, duration, request ID, remote
// address, and the authenticated credential when one is present.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := NewStatusWriter(w)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if ww.Status() >= 500 {
				level = slog.LevelError
			} else if ww.Status() >= 400 {
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", float64(duration.Microseconds()) / 1000.0,
				"bytes", ww.BytesWritten(),
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if p := GetPrincipal(r.Context()); p != nil && p.CredentialID > 0 {
				attrs = append(attrs, "credential_id", p.CredentialID)
			}

			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// StatusWriter wraps http.ResponseWriter to capture the status code and
// bytes written. Shared by the logging middleware and the request gateway,
// which both need the final outcome of a handler.
type StatusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *StatusWriter) Status() int       { return w.status }
func (w *StatusWriter) BytesWritten() int { return w.bytes }

func (w *StatusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter, required for http.Flusher
// and other interface assertions through middleware chains.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
