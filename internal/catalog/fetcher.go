package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/shopify"
)

// ProductLister is the slice of the store client the fetcher needs.
type ProductLister interface {
	ListProducts(ctx context.Context, pageURL string, limit int) ([]shopify.ProductRecord, string, error)
}

// Fetcher retrieves every product matching a tag by walking the
// store's paginated product listing. Filtering happens client-side;
// the remote query is not narrowed.
type Fetcher struct {
	Lister      ProductLister
	PageSize    int
	MaxPages    int
	PageRetries int
	RetryDelay  time.Duration
}

func NewFetcher(lister ProductLister, pageSize, maxPages, pageRetries int) *Fetcher {
	return &Fetcher{
		Lister:      lister,
		PageSize:    pageSize,
		MaxPages:    maxPages,
		PageRetries: pageRetries,
		RetryDelay:  time.Second,
	}
}

// FetchError reports a failed fetch along with how many products had
// already been collected when the run died.
type FetchError struct {
	Fetched int
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d products: %v", e.Fetched, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchByTag materializes all products carrying the given tag, in page
// order. The result's position defines each product's 1-based index
// for the rest of the run. Pagination stops when the store reports no
// next page or the page ceiling is hit.
func (f *Fetcher) FetchByTag(ctx context.Context, tag string) ([]models.Product, error) {
	var matched []models.Product
	pageURL := ""

	for page := 0; page < f.MaxPages; page++ {
		records, next, err := f.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, &FetchError{Fetched: len(matched), Err: err}
		}

		if len(records) == 0 {
			slog.Debug("Empty page, stopping pagination", "page", page+1)
			break
		}

		count := 0
		for _, record := range records {
			if record.HasTag(tag) {
				matched = append(matched, models.Product{ID: record.ID, Title: record.Title})
				count++
			}
		}
		slog.Info("Fetched product page", "page", page+1, "products", len(records), "matched", count, "total_matched", len(matched))

		if next == "" {
			break
		}
		pageURL = next
	}

	return matched, nil
}

// fetchPage requests one page, retrying transient failures a fixed
// number of times.
func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) ([]shopify.ProductRecord, string, error) {
	var lastErr error
	for attempt := 0; attempt <= f.PageRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying product page", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(f.RetryDelay):
			}
		}

		records, next, err := f.Lister.ListProducts(ctx, pageURL, f.PageSize)
		if err == nil {
			return records, next, nil
		}
		lastErr = err

		if !shopify.Retryable(err) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("page request exhausted %d retries: %w", f.PageRetries, lastErr)
}
