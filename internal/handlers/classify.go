package handlers

import (
	"errors"
	"net/http"

	"github.com/merchtools/collectioner/internal/classify"
)

// HandleClassify classifies the session's fetched products into
// collections. A verification failure is reported as a server error
// since it indicates a defect, not bad input.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	collections, batches, err := h.pipeline.Classify(r.Context(), session)
	if err != nil {
		var consistencyErr *classify.ConsistencyError
		if errors.As(err, &consistencyErr) {
			h.writeError(w, "Classification verification failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeError(w, "Classification failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.store.Set(session.ID, session)

	h.writeJSON(w, map[string]any{
		"success":           true,
		"collections":       collections,
		"batches_processed": batches,
	})
}
