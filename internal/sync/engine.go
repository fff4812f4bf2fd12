package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/shopify"
)

// RemoteStore is the slice of the store client the engine mutates
// collections through.
type RemoteStore interface {
	ListCollections(ctx context.Context) ([]models.RemoteCollection, error)
	CreateCollection(ctx context.Context, title string) (models.RemoteCollection, error)
	AddProduct(ctx context.Context, collectionID, productID int64) error
}

// Options tune retry, pacing, and concurrency behavior.
type Options struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MinInterval time.Duration
	Concurrency int

	// StrictCreateCheck treats a list-shaped create response as a
	// permission failure. Disable only if the target API version is
	// known to paginate create confirmations.
	StrictCreateCheck bool
}

// Summary aggregates a sync run for reporting.
type Summary struct {
	Created           int
	Reused            int
	Added             int
	AlreadyMember     int
	Failed            int
	FailedCollections []string
	Outcomes          []models.SyncOutcome

	// PermissionFailure is set when a create call revealed a token
	// scope problem. It is surfaced separately because the remedy is
	// reissuing the credential, not retrying.
	PermissionFailure error
}

// Engine reconciles verified collections against the store. Every step
// is idempotent: existing collections are reused by case-insensitive
// name match and "already a member" responses count as success, so a
// full re-run after partial progress is always safe.
type Engine struct {
	store   RemoteStore
	limiter *rate.Limiter
	opts    Options

	// collection name (lowercased) -> remote id, cached for the run
	ids     map[string]int64
	listed  bool
	emitMu  gosync.Mutex
	tallyMu gosync.Mutex
}

func New(store RemoteStore, opts Options) *Engine {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &Engine{
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		ids:     make(map[string]int64),
	}
}

// Sync applies the session's verified collections to the store. The
// emit callback receives progress events in order; it may be nil. A
// failed collection or member is recorded and skipped, never fatal;
// only context cancellation aborts the run.
func (e *Engine) Sync(ctx context.Context, session *models.RunSession, emit func(Event)) (*Summary, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	summary := &Summary{}

	total := 0
	names := make([]string, 0, len(session.Collections))
	for name, indices := range session.Collections {
		names = append(names, name)
		total += len(indices)
	}
	sort.Strings(names)

	e.emit(emit, Event{Type: EventStart, Total: total, Collections: len(names)})

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			e.emit(emit, Event{Type: EventError, Message: err.Error()})
			return summary, err
		}

		indices := session.Collections[name]
		e.emit(emit, Event{Type: EventCollectionStart, Collection: name, Count: len(indices)})

		id, created, err := e.ensureCollection(ctx, name)
		if err != nil {
			var permErr *shopify.PermissionError
			if errors.As(err, &permErr) {
				summary.PermissionFailure = err
			}
			slog.Error("Collection sync failed", "collection", name, "error", err)
			summary.FailedCollections = append(summary.FailedCollections, name)
			summary.Failed += len(indices)
			e.emit(emit, Event{Type: EventCollectionError, Collection: name, Message: err.Error()})
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Reused++
		}
		e.emit(emit, Event{Type: EventCollectionCreated, Collection: name, CollectionID: id})

		e.addMembers(ctx, session, name, id, indices, summary, emit)
	}

	if err := ctx.Err(); err != nil {
		e.emit(emit, Event{Type: EventError, Message: err.Error()})
		return summary, err
	}

	e.emit(emit, Event{
		Type:         EventComplete,
		Total:        total,
		SuccessCount: summary.Added + summary.AlreadyMember,
	})
	return summary, nil
}

// addMembers issues the add calls for one collection, concurrently up
// to the configured limit. All callers share the engine's rate
// limiter, so concurrency never exceeds the store's request budget.
func (e *Engine) addMembers(ctx context.Context, session *models.RunSession, name string, collectionID int64, indices []int, summary *Summary, emit func(Event)) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Concurrency)

	for _, index := range indices {
		if index < 1 || index > len(session.Products) {
			continue
		}
		product := session.Products[index-1]

		group.Go(func() error {
			outcome := models.SyncOutcome{
				Collection: name,
				ProductID:  product.ID,
				Title:      product.Title,
			}

			err := e.withRetry(groupCtx, func() error {
				return e.store.AddProduct(groupCtx, collectionID, product.ID)
			})
			switch {
			case err == nil:
				outcome.Status = models.MemberAdded
			case errors.Is(err, shopify.ErrAlreadyMember):
				outcome.Status = models.MemberAlready
			case groupCtx.Err() != nil:
				return groupCtx.Err()
			default:
				slog.Warn("Product add failed terminally", "collection", name, "product_id", product.ID, "error", err)
				outcome.Status = models.MemberFailed
				outcome.Error = err.Error()
			}

			e.record(summary, outcome)
			e.emit(emit, Event{
				Type:       EventProductAdded,
				Collection: name,
				Product:    product.Title,
				Status:     outcome.Status,
			})
			return nil
		})
	}

	// Member failures are recorded per product; the only group error
	// is cancellation, which the caller checks on the next iteration.
	_ = group.Wait()
}

// ensureCollection finds the remote collection matching name
// case-insensitively, creating it if absent. Returns whether a create
// happened.
func (e *Engine) ensureCollection(ctx context.Context, name string) (int64, bool, error) {
	if !e.listed {
		err := e.lookupRetry(ctx, func() error {
			existing, err := e.store.ListCollections(ctx)
			if err != nil {
				return err
			}
			for _, col := range existing {
				e.ids[strings.ToLower(col.Title)] = col.ID
			}
			return nil
		})
		if err != nil {
			return 0, false, fmt.Errorf("failed to list collections: %w", err)
		}
		e.listed = true
	}

	key := strings.ToLower(name)
	if id, ok := e.ids[key]; ok {
		slog.Info("Reusing existing collection", "collection", name, "id", id)
		return id, false, nil
	}

	var created models.RemoteCollection
	err := e.withRetry(ctx, func() error {
		var err error
		created, err = e.store.CreateCollection(ctx, name)
		return err
	})
	if err != nil {
		return 0, false, err
	}

	e.ids[key] = created.ID
	slog.Info("Created collection", "collection", name, "id", created.ID)
	return created.ID, true, nil
}

// withRetry paces one mutating call through the shared limiter and
// retries transient failures with exponential backoff, honoring an
// explicit server wait when one is given. Permission failures pass
// through immediately unless the strict create check is disabled, in
// which case a list-shaped create response is retried like any other
// transient error.
func (e *Engine) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := e.backoff(attempt)
			if serverWait, ok := shopify.RetryAfter(lastErr); ok {
				wait = serverWait
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil || errors.Is(err, shopify.ErrAlreadyMember) {
			return err
		}
		lastErr = err

		if !e.retryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted %d retries: %w", e.opts.MaxRetries, lastErr)
}

// lookupRetry retries a read call without consuming the mutating-call
// rate budget.
func (e *Engine) lookupRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.backoff(attempt)):
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shopify.Retryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted %d retries: %w", e.opts.MaxRetries, lastErr)
}

func (e *Engine) retryable(err error) bool {
	if shopify.Retryable(err) {
		return true
	}
	if !e.opts.StrictCreateCheck {
		var permErr *shopify.PermissionError
		if errors.As(err, &permErr) && permErr.ListResponse {
			return true
		}
	}
	return false
}

func (e *Engine) backoff(attempt int) time.Duration {
	wait := e.opts.BaseDelay * time.Duration(1<<uint(attempt-1))
	if wait > e.opts.MaxDelay {
		return e.opts.MaxDelay
	}
	return wait
}

func (e *Engine) record(summary *Summary, outcome models.SyncOutcome) {
	e.tallyMu.Lock()
	defer e.tallyMu.Unlock()
	summary.Outcomes = append(summary.Outcomes, outcome)
	switch outcome.Status {
	case models.MemberAdded:
		summary.Added++
	case models.MemberAlready:
		summary.AlreadyMember++
	case models.MemberFailed:
		summary.Failed++
	}
}

func (e *Engine) emit(emit func(Event), event Event) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	emit(event)
}
