package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/merchtools/collectioner/internal/config"
	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/pipeline"
	"github.com/merchtools/collectioner/internal/storage"
)

type Handler struct {
	store    *storage.RunStore
	pipeline *pipeline.Pipeline
}

func New(cfg config.Config) *Handler {
	return &Handler{
		store:    storage.New(),
		pipeline: pipeline.New(cfg),
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message}); err != nil {
		slog.Error("Unable to encode error response", "err", err)
	}
}

// Session helpers
func (h *Handler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*models.RunSession, bool) {
	token := r.Header.Get("X-Session-Token")
	if token == "" {
		token = r.URL.Query().Get("session")
	}
	if token == "" {
		h.writeError(w, "Missing session token", http.StatusBadRequest)
		return nil, false
	}

	session, exists := h.store.Get(token)
	if !exists {
		h.writeError(w, "Session not found or expired", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
