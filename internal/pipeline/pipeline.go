package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/merchtools/collectioner/internal/catalog"
	"github.com/merchtools/collectioner/internal/classify"
	"github.com/merchtools/collectioner/internal/config"
	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/oracle"
	"github.com/merchtools/collectioner/internal/probe"
	"github.com/merchtools/collectioner/internal/shopify"
	"github.com/merchtools/collectioner/internal/sync"
)

// Pipeline wires the run stages together: fetch, classify (with
// verification), and sync. Each stage operates on an explicit
// RunSession rather than ambient state, and classification must
// complete and verify before sync issues a single remote call.
type Pipeline struct {
	cfg config.Config

	// newStore is swappable for tests.
	newStore func(shopURL, accessToken string) *shopify.Client
}

func New(cfg config.Config) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		newStore: func(shopURL, accessToken string) *shopify.Client {
			client := shopify.New(shopURL, accessToken)
			if cfg.Fetch.Timeout > 0 {
				client.HTTPClient.Timeout = cfg.Fetch.Timeout
			}
			return client
		},
	}
}

// NewSession creates a run session for the given store credentials.
func (p *Pipeline) NewSession(shopURL, accessToken, tag string) *models.RunSession {
	return &models.RunSession{
		ID:          uuid.NewString(),
		ShopURL:     shopify.NormalizeShopURL(shopURL),
		AccessToken: accessToken,
		Tag:         tag,
		CreatedAt:   time.Now(),
	}
}

// Fetch materializes all products matching the session's tag and
// stores them on the session. Returns the product count.
func (p *Pipeline) Fetch(ctx context.Context, session *models.RunSession) (int, error) {
	client := p.newStore(session.ShopURL, session.AccessToken)
	fetcher := catalog.NewFetcher(client, p.cfg.Fetch.PageSize, p.cfg.Fetch.MaxPages, p.cfg.Fetch.PageRetries)

	products, err := fetcher.FetchByTag(ctx, session.Tag)
	if err != nil {
		return 0, err
	}

	session.Products = products
	session.Collections = nil
	slog.Info("Fetch complete", "session", session.ID, "tag", session.Tag, "products", len(products))
	return len(products), nil
}

// Classify partitions the session's products into collections and
// verifies the partition. Returns the rendered collections and the
// number of oracle batches processed.
func (p *Pipeline) Classify(ctx context.Context, session *models.RunSession) (map[string][]models.CollectionEntry, int, error) {
	if len(session.Products) == 0 {
		return nil, 0, fmt.Errorf("no products in session; fetch products first")
	}

	orc, err := oracle.New(p.cfg.Oracle.Provider, p.cfg.Oracle.Model, p.cfg.Oracle.Temperature)
	if err != nil {
		return nil, 0, err
	}
	classifier := classify.New(orc, p.cfg.Classify.BatchSize, p.cfg.Classify.SampleSize)

	candidates := classifier.CandidateNames(ctx, session.Products)

	raw, err := classifier.Classify(ctx, session.Products, candidates)
	if err != nil {
		return nil, 0, err
	}

	verified, err := classify.Verify(raw, len(session.Products))
	if err != nil {
		return nil, 0, err
	}

	session.Collections = verified
	slog.Info("Classification complete", "session", session.ID, "products", len(session.Products), "collections", len(verified))
	return session.RenderCollections(), classifier.Batches(len(session.Products)), nil
}

// Sync reconciles the session's verified collections against the
// store, emitting progress events along the way.
func (p *Pipeline) Sync(ctx context.Context, session *models.RunSession, emit func(sync.Event)) (*sync.Summary, error) {
	if len(session.Collections) == 0 {
		return nil, fmt.Errorf("no classified collections in session; classify products first")
	}

	client := p.newStore(session.ShopURL, session.AccessToken)
	engine := sync.New(client, sync.Options{
		MaxRetries:        p.cfg.Sync.MaxRetries,
		BaseDelay:         p.cfg.Sync.BaseDelay,
		MaxDelay:          p.cfg.Sync.MaxDelay,
		MinInterval:       p.cfg.Sync.MinInterval,
		Concurrency:       p.cfg.Sync.Concurrency,
		StrictCreateCheck: p.cfg.Sync.StrictCreateCheck == nil || *p.cfg.Sync.StrictCreateCheck,
	})

	summary, err := engine.Sync(ctx, session, emit)
	if err != nil {
		return summary, err
	}
	slog.Info("Sync complete", "session", session.ID,
		"created", summary.Created, "reused", summary.Reused,
		"added", summary.Added, "already_member", summary.AlreadyMember, "failed", summary.Failed)
	return summary, nil
}

// Probe runs the scoped permission probe against the store.
func (p *Pipeline) Probe(ctx context.Context, shopURL, accessToken string) probe.Result {
	client := p.newStore(shopURL, accessToken)
	return probe.Run(ctx, client)
}

// Run executes the full pipeline headlessly and returns the session
// and sync summary.
func (p *Pipeline) Run(ctx context.Context, shopURL, accessToken, tag string, emit func(sync.Event)) (*models.RunSession, *sync.Summary, error) {
	session := p.NewSession(shopURL, accessToken, tag)

	count, err := p.Fetch(ctx, session)
	if err != nil {
		return session, nil, fmt.Errorf("fetch stage failed: %w", err)
	}
	if count == 0 {
		return session, nil, fmt.Errorf("no products matched tag %q", tag)
	}

	if _, _, err := p.Classify(ctx, session); err != nil {
		return session, nil, fmt.Errorf("classification stage failed: %w", err)
	}

	summary, err := p.Sync(ctx, session, emit)
	if err != nil {
		return session, summary, fmt.Errorf("sync stage failed: %w", err)
	}
	return session, summary, nil
}
