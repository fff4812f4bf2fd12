package models

import "time"

// Product represents a single catalog entry fetched from the store.
// The ID is assigned by the remote system and treated as opaque.
type Product struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// RunSession holds the working set of one classification run: the
// credentials used to reach the store, the fetched products, and the
// classified collections. Products are referenced by 1-based index in
// fetch order; the index-to-product mapping is fixed for the lifetime
// of the session.
type RunSession struct {
	ID          string           `json:"id"`
	ShopURL     string           `json:"shop_url"`
	AccessToken string           `json:"-"`
	Tag         string           `json:"tag"`
	Products    []Product        `json:"products"`
	Collections map[string][]int `json:"collections,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// CollectionEntry is one classified product rendered for display.
type CollectionEntry struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

// RenderCollections expands an index partition into (index, title) pairs
// using the session's product list. Indices outside [1, len(products)]
// are skipped; the verifier guarantees there are none by the time a
// session is rendered.
func (s *RunSession) RenderCollections() map[string][]CollectionEntry {
	rendered := make(map[string][]CollectionEntry, len(s.Collections))
	for name, indices := range s.Collections {
		entries := make([]CollectionEntry, 0, len(indices))
		for _, idx := range indices {
			if idx < 1 || idx > len(s.Products) {
				continue
			}
			entries = append(entries, CollectionEntry{Index: idx, Title: s.Products[idx-1].Title})
		}
		rendered[name] = entries
	}
	return rendered
}

// RemoteCollection is the store's materialized grouping entity.
type RemoteCollection struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// MemberStatus describes the outcome of one add-member attempt.
type MemberStatus string

const (
	MemberAdded   MemberStatus = "added"
	MemberAlready MemberStatus = "already_member"
	MemberFailed  MemberStatus = "failed"
)

// SyncOutcome records the result of syncing one product into one
// collection. Outcomes exist only for reporting; nothing is retained
// beyond the run.
type SyncOutcome struct {
	Collection string       `json:"collection"`
	ProductID  int64        `json:"product_id"`
	Title      string       `json:"title"`
	Status     MemberStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
}
