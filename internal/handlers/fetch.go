package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/merchtools/collectioner/internal/catalog"
)

// HandleFetchProducts starts a run: it fetches all products matching
// the requested tag and stores them in a new session.
func (h *Handler) HandleFetchProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ShopURL     string `json:"shop_url"`
		AccessToken string `json:"access_token"`
		Tag         string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	request.ShopURL = strings.TrimSpace(request.ShopURL)
	request.AccessToken = strings.TrimSpace(request.AccessToken)
	request.Tag = strings.TrimSpace(request.Tag)
	if request.ShopURL == "" || request.AccessToken == "" || request.Tag == "" {
		h.writeError(w, "shop_url, access_token and tag are required", http.StatusBadRequest)
		return
	}

	session := h.pipeline.NewSession(request.ShopURL, request.AccessToken, request.Tag)

	count, err := h.pipeline.Fetch(r.Context(), session)
	if err != nil {
		var fetchErr *catalog.FetchError
		if errors.As(err, &fetchErr) {
			h.writeJSON(w, map[string]any{
				"success": false,
				"error":   fetchErr.Error(),
				"fetched": fetchErr.Fetched,
			})
			return
		}
		h.writeError(w, "Fetch failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.store.Set(session.ID, session)

	h.writeJSON(w, map[string]any{
		"success":  true,
		"session":  session.ID,
		"count":    count,
		"products": session.Products,
	})
}
