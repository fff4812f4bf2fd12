package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/shopify"
)

// StoreClient is the slice of the store client the probe exercises.
type StoreClient interface {
	ListProducts(ctx context.Context, pageURL string, limit int) ([]shopify.ProductRecord, string, error)
	ListCollections(ctx context.Context) ([]models.RemoteCollection, error)
	CreateCollection(ctx context.Context, title string) (models.RemoteCollection, error)
	DeleteCollection(ctx context.Context, id int64) error
}

// Capability is the result of one probed permission.
type Capability struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result reports every probed capability. Passed is true only when
// all of them succeeded.
type Result struct {
	Passed       bool         `json:"passed"`
	Capabilities []Capability `json:"capabilities"`
}

// Run checks that the access token can read products, read
// collections, and create collections. The write check creates a
// throwaway collection and deletes it again; no residual state is
// left behind on success. A failed cleanup is reported in the
// capability detail so the leftover can be removed by hand.
func Run(ctx context.Context, client StoreClient) Result {
	result := Result{Passed: true}

	readProducts := Capability{Name: "read_products", Passed: true}
	if _, _, err := client.ListProducts(ctx, "", 1); err != nil {
		readProducts.Passed = false
		readProducts.Detail = err.Error()
	}
	result.Capabilities = append(result.Capabilities, readProducts)

	readCollections := Capability{Name: "read_collections", Passed: true}
	if _, err := client.ListCollections(ctx); err != nil {
		readCollections.Passed = false
		readCollections.Detail = err.Error()
	}
	result.Capabilities = append(result.Capabilities, readCollections)

	result.Capabilities = append(result.Capabilities, probeWrite(ctx, client))

	for _, capability := range result.Capabilities {
		if !capability.Passed {
			result.Passed = false
		}
	}
	return result
}

func probeWrite(ctx context.Context, client StoreClient) Capability {
	capability := Capability{Name: "write_collections", Passed: true}

	title := "collectioner-probe-" + uuid.NewString()[:8]
	created, err := client.CreateCollection(ctx, title)
	if err != nil {
		capability.Passed = false
		var permErr *shopify.PermissionError
		if errors.As(err, &permErr) {
			capability.Detail = "access token lacks write_products scope; reissue the token with write access"
		} else {
			capability.Detail = err.Error()
		}
		return capability
	}

	if err := client.DeleteCollection(ctx, created.ID); err != nil {
		slog.Warn("Probe cleanup failed", "collection_id", created.ID, "error", err)
		capability.Detail = fmt.Sprintf("write works but cleanup failed, collection %d (%s) left behind: %v", created.ID, title, err)
	}
	return capability
}
