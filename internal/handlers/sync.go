package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/merchtools/collectioner/internal/sync"
)

// HandleSyncStream applies the session's verified collections to the
// store and streams per-item progress as Server-Sent Events.
func (h *Handler) HandleSyncStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	// Reject before the SSE headers are committed; after that the only
	// way to report a problem is an error event on the stream.
	if len(session.Collections) == 0 {
		h.writeError(w, "No classified collections in session; classify products first", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	emit := func(event sync.Event) {
		data, err := json.Marshal(event)
		if err != nil {
			slog.Error("Unable to encode progress event", "err", err)
			return
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			slog.Debug("Client disconnected from sync stream", "err", err)
			return
		}
		flusher.Flush()
	}

	summary, err := h.pipeline.Sync(r.Context(), session, emit)
	if err != nil {
		// The error event was already emitted by the engine; log for
		// the server side.
		slog.Error("Sync run aborted", "session", session.ID, "error", err)
		return
	}

	if summary.PermissionFailure != nil {
		emit(sync.Event{
			Type:    sync.EventError,
			Message: "Permission problem: " + summary.PermissionFailure.Error(),
		})
	}
}
