package classify

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/merchtools/collectioner/internal/models"
)

const (
	// CatchAllName absorbs every product the oracle failed to place.
	CatchAllName = "Other"
	// FallbackName is the single candidate used when name suggestion
	// fails entirely.
	FallbackName = "General Products"
)

// BatchOracle is the advisory classification service. Both calls are
// best-effort; the classifier never trusts them for coverage.
type BatchOracle interface {
	SuggestNames(ctx context.Context, sampleTitles []string) ([]string, error)
	ClassifyBatch(ctx context.Context, start int, titles, candidates []string) (map[int]string, error)
}

// Classifier partitions a product list into named collections. The
// iteration over products is driven locally: the oracle proposes an
// assignment per batch, and anything it omits, misnames, or garbles
// lands in the catch-all collection. Every product index is assigned
// exactly once regardless of oracle behavior.
type Classifier struct {
	Oracle     BatchOracle
	BatchSize  int
	SampleSize int
}

func New(oracle BatchOracle, batchSize, sampleSize int) *Classifier {
	return &Classifier{
		Oracle:     oracle,
		BatchSize:  batchSize,
		SampleSize: sampleSize,
	}
}

// CandidateNames asks the oracle for collection name candidates based
// on a sample of the product list. Oracle failure is accepted here and
// only here: the fallback single-name candidate set still produces a
// valid classification downstream.
func (c *Classifier) CandidateNames(ctx context.Context, products []models.Product) []string {
	sampleSize := c.SampleSize
	if sampleSize <= 0 || sampleSize > len(products) {
		sampleSize = len(products)
	}
	sample := make([]string, sampleSize)
	for i := 0; i < sampleSize; i++ {
		sample[i] = products[i].Title
	}

	names, err := c.Oracle.SuggestNames(ctx, sample)
	if err != nil || len(names) == 0 {
		slog.Warn("Name suggestion failed, using fallback collection", "error", err)
		return []string{FallbackName}
	}
	slog.Info("Candidate collections suggested", "count", len(names))
	return names
}

// Classify maps every product index in [1, len(products)] to exactly
// one collection name. The only error returned is context
// cancellation between batches; oracle failures degrade into catch-all
// assignments instead.
func (c *Classifier) Classify(ctx context.Context, products []models.Product, candidates []string) (map[string][]int, error) {
	n := len(products)
	batchSize := c.effectiveBatchSize(n)

	// Candidate lookup is case-insensitive; assignments use the
	// canonical spelling from the candidate list.
	canonical := make(map[string]string, len(candidates)+1)
	for _, name := range candidates {
		canonical[strings.ToLower(name)] = name
	}
	canonical[strings.ToLower(CatchAllName)] = CatchAllName

	assigned := make(map[int]string, n)

	for start := 0; start < n; start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		count := batchSize
		if start+count > n {
			count = n - start
		}

		titles := make([]string, count)
		for i := 0; i < count; i++ {
			titles[i] = products[start+i].Title
		}

		proposed, err := c.Oracle.ClassifyBatch(ctx, start, titles, candidates)
		if err != nil {
			slog.Warn("Batch classification failed, assigning batch to catch-all",
				"start", start+1, "end", start+count, "error", err)
			proposed = nil
		}

		for i := 0; i < count; i++ {
			index := start + i + 1

			name := CatchAllName
			if suggestion, ok := proposed[index]; ok {
				if known, ok := canonical[strings.ToLower(strings.TrimSpace(suggestion))]; ok {
					name = known
				}
			}

			// First write wins. The loop assigns each index exactly
			// once, so a prior entry would indicate an oracle echoing
			// indices across batches; it is ignored either way.
			if _, taken := assigned[index]; taken {
				continue
			}
			assigned[index] = name
		}

		slog.Info("Batch classified", "start", start+1, "end", start+count, "proposals", len(proposed))
	}

	collections := make(map[string][]int)
	for index := 1; index <= n; index++ {
		name := assigned[index]
		collections[name] = append(collections[name], index)
	}
	for name := range collections {
		sort.Ints(collections[name])
	}
	return collections, nil
}

// Batches reports how many oracle calls classifying n products takes.
func (c *Classifier) Batches(n int) int {
	if n == 0 {
		return 0
	}
	batchSize := c.effectiveBatchSize(n)
	return (n + batchSize - 1) / batchSize
}

// effectiveBatchSize shrinks batches as the catalog grows so oracle
// prompts stay inside input-size limits. The explicit BatchSize
// setting overrides adaptation.
func (c *Classifier) effectiveBatchSize(n int) int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	switch {
	case n > 5000:
		return 50
	case n > 1000:
		return 100
	default:
		return 200
	}
}
