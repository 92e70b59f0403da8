package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"image-drop/internal/logger"
)

// requestIDMiddleware ensures every request has a request id.
// If the client supplies X-Request-Id, we keep it; otherwise we generate one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), rid)))
	})
}

// loggingMiddleware logs one line per request and records it in metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)

		level := slog.LevelInfo
		switch {
		case lrw.status >= 500:
			level = slog.LevelError
		case lrw.status >= 400:
			level = slog.LevelWarn
		}

		logger.FromContext(r.Context()).Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", lrw.size,
			"ip", getClientIP(r, s.cfg.TrustProxyHeaders),
			"ua", r.UserAgent(),
		)

		s.metrics.RecordRequest(lrw.status)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
