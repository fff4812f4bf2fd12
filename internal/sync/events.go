package sync

import "github.com/merchtools/collectioner/internal/models"

// EventType enumerates the progress events emitted during a sync run,
// in the order a consumer can expect them: start, then per collection
// collection_start followed by collection_created or collection_error,
// then product_added per member, and finally complete. An error event
// replaces complete when the run dies before finishing.
type EventType string

const (
	EventStart             EventType = "start"
	EventCollectionStart   EventType = "collection_start"
	EventCollectionCreated EventType = "collection_created"
	EventCollectionError   EventType = "collection_error"
	EventProductAdded      EventType = "product_added"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one progress notification. Fields are populated per type;
// unused fields stay at their zero value and are omitted on the wire.
type Event struct {
	Type         EventType           `json:"type"`
	Collection   string              `json:"collection,omitempty"`
	CollectionID int64               `json:"collection_id,omitempty"`
	Product      string              `json:"product,omitempty"`
	Status       models.MemberStatus `json:"status,omitempty"`
	Message      string              `json:"message,omitempty"`
	Count        int                 `json:"count,omitempty"`
	Total        int                 `json:"total,omitempty"`
	Collections  int                 `json:"collections,omitempty"`
	SuccessCount int                 `json:"success_count,omitempty"`
}
