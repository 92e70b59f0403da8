package server

import (
	"context"
	"net/http"
	"time"

	"image-drop/internal/logger"
)

const readyTimeout = 2 * time.Second

// handleHealth is the liveness probe. It never touches storage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleReady reports whether the storage backend is usable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).Warn("storage not ready", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
