package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HandleProbe checks the supplied credentials against the store: read
// products, read collections, and create collections (via a throwaway
// create+delete).
func (h *Handler) HandleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ShopURL     string `json:"shop_url"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	request.ShopURL = strings.TrimSpace(request.ShopURL)
	request.AccessToken = strings.TrimSpace(request.AccessToken)
	if request.ShopURL == "" || request.AccessToken == "" {
		h.writeError(w, "shop_url and access_token are required", http.StatusBadRequest)
		return
	}

	result := h.pipeline.Probe(r.Context(), request.ShopURL, request.AccessToken)
	h.writeJSON(w, result)
}
