package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merchtools/collectioner/internal/models"
	"github.com/merchtools/collectioner/internal/shopify"
)

// fakeStore is an in-memory remote store double. It records call
// timestamps for the pacing test and can be scripted to fail.
type fakeStore struct {
	mu gosync.Mutex

	collections []models.RemoteCollection
	members     map[int64][]int64
	nextID      int64

	createCalls  int
	addCalls     int
	addTimes     []time.Time
	createErr    error
	addErrOnce   map[int64]error
	failProducts map[int64]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:      make(map[int64][]int64),
		nextID:       100,
		addErrOnce:   make(map[int64]error),
		failProducts: make(map[int64]error),
	}
}

func (f *fakeStore) ListCollections(ctx context.Context) ([]models.RemoteCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RemoteCollection(nil), f.collections...), nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, title string) (models.RemoteCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return models.RemoteCollection{}, f.createErr
	}
	f.nextID++
	created := models.RemoteCollection{ID: f.nextID, Title: title}
	f.collections = append(f.collections, created)
	return created, nil
}

func (f *fakeStore) AddProduct(ctx context.Context, collectionID, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.addTimes = append(f.addTimes, time.Now())

	if err, ok := f.failProducts[productID]; ok {
		return err
	}
	if err, ok := f.addErrOnce[productID]; ok {
		delete(f.addErrOnce, productID)
		return err
	}

	for _, member := range f.members[collectionID] {
		if member == productID {
			return shopify.ErrAlreadyMember
		}
	}
	f.members[collectionID] = append(f.members[collectionID], productID)
	return nil
}

func testSession() *models.RunSession {
	return &models.RunSession{
		ID: "test",
		Products: []models.Product{
			{ID: 11, Title: "Wall Mount Bike Rack"},
			{ID: 12, Title: "Ceiling Bike Hoist"},
			{ID: 13, Title: "Garage Floor Tile"},
		},
		Collections: map[string][]int{
			"Bike Storage": {1, 2},
			"Flooring":     {3},
		},
	}
}

func fastOptions() Options {
	return Options{
		MaxRetries:        2,
		BaseDelay:         time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		Concurrency:       1,
		StrictCreateCheck: true,
	}
}

func TestSyncCreatesCollectionsAndAddsMembers(t *testing.T) {
	store := newFakeStore()
	engine := New(store, fastOptions())

	summary, err := engine.Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	require.Equal(t, 2, summary.Created)
	require.Equal(t, 0, summary.Reused)
	require.Equal(t, 3, summary.Added)
	require.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Outcomes, 3)
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newFakeStore()

	first, err := New(store, fastOptions()).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)
	require.Equal(t, 3, first.Added)

	// Second run must reuse both collections and treat every member
	// as already present; no duplicates appear remotely.
	second, err := New(store, fastOptions()).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 2, second.Reused)
	require.Equal(t, 0, second.Added)
	require.Equal(t, 3, second.AlreadyMember)
	require.Equal(t, 0, second.Failed)

	require.Len(t, store.collections, 2)
	total := 0
	for _, members := range store.members {
		total += len(members)
	}
	require.Equal(t, 3, total)
}

func TestSyncMatchesExistingCollectionCaseInsensitively(t *testing.T) {
	store := newFakeStore()
	store.collections = []models.RemoteCollection{{ID: 42, Title: "bike storage"}}

	events := []Event{}
	summary, err := New(store, fastOptions()).Sync(context.Background(), testSession(), func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Reused)
	require.Equal(t, 1, summary.Created)

	var readyID int64
	for _, event := range events {
		if event.Type == EventCollectionCreated && event.Collection == "Bike Storage" {
			readyID = event.CollectionID
		}
	}
	require.Equal(t, int64(42), readyID)
	require.ElementsMatch(t, []int64{11, 12}, store.members[42])
}

func TestSyncAlreadyMemberIsSuccessNotRetried(t *testing.T) {
	store := newFakeStore()
	// Product 11 is already a member from a previous partial run.
	store.collections = []models.RemoteCollection{{ID: 42, Title: "Bike Storage"}, {ID: 43, Title: "Flooring"}}
	store.members[42] = []int64{11}

	summary, err := New(store, fastOptions()).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	require.Equal(t, 1, summary.AlreadyMember)
	require.Equal(t, 2, summary.Added)
	require.Equal(t, 0, summary.Failed)
	// 3 adds, none retried: already-member is terminal success.
	require.Equal(t, 3, store.addCalls)
}

func TestSyncPermissionAnomalyIsNotRetried(t *testing.T) {
	store := newFakeStore()
	store.createErr = &shopify.PermissionError{Op: "create collection", ListResponse: true}

	summary, err := New(store, fastOptions()).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	// One create attempt per collection, no retries.
	require.Equal(t, 2, store.createCalls)
	require.Error(t, summary.PermissionFailure)
	require.ElementsMatch(t, []string{"Bike Storage", "Flooring"}, summary.FailedCollections)
	require.Equal(t, 3, summary.Failed)
	require.Equal(t, 0, store.addCalls)
}

func TestSyncPermissionAnomalyRetriedWhenCheckDisabled(t *testing.T) {
	store := newFakeStore()
	store.createErr = &shopify.PermissionError{Op: "create collection", ListResponse: true}

	opts := fastOptions()
	opts.StrictCreateCheck = false
	_, err := New(store, opts).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	// With the heuristic disabled the list response is treated as
	// transient: initial attempt plus MaxRetries, per collection.
	require.Equal(t, 2*(opts.MaxRetries+1), store.createCalls)
}

func TestSyncTransientAddFailureIsRetriedThenSucceeds(t *testing.T) {
	store := newFakeStore()
	store.addErrOnce[12] = &shopify.RateLimitError{RetryAfter: time.Millisecond}

	summary, err := New(store, fastOptions()).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	require.Equal(t, 3, summary.Added)
	require.Equal(t, 0, summary.Failed)
	require.Equal(t, 4, store.addCalls)
}

func TestSyncTerminalMemberFailureDoesNotAbortRun(t *testing.T) {
	store := newFakeStore()
	store.failProducts[11] = &shopify.APIError{Op: "add product", Status: 500, Body: "boom"}

	summary, err := New(store, fastOptions()).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 2, summary.Added)

	var failed []models.SyncOutcome
	for _, outcome := range summary.Outcomes {
		if outcome.Status == models.MemberFailed {
			failed = append(failed, outcome)
		}
	}
	require.Len(t, failed, 1)
	require.Equal(t, int64(11), failed[0].ProductID)
	require.NotEmpty(t, failed[0].Error)
}

func TestSyncPacesMutatingCalls(t *testing.T) {
	store := newFakeStore()

	opts := fastOptions()
	opts.MinInterval = 30 * time.Millisecond
	opts.Concurrency = 4

	_, err := New(store, opts).Sync(context.Background(), testSession(), nil)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(store.addTimes), 3)
	for i := 1; i < len(store.addTimes); i++ {
		gap := store.addTimes[i].Sub(store.addTimes[i-1])
		require.GreaterOrEqual(t, gap, 20*time.Millisecond,
			"mutating calls %d and %d were %s apart", i-1, i, gap)
	}
}

func TestSyncEmitsOrderedEvents(t *testing.T) {
	store := newFakeStore()

	var events []Event
	_, err := New(store, fastOptions()).Sync(context.Background(), testSession(), func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)

	require.Equal(t, EventStart, events[0].Type)
	require.Equal(t, 3, events[0].Total)
	require.Equal(t, 2, events[0].Collections)
	require.Equal(t, EventComplete, events[len(events)-1].Type)
	require.Equal(t, 3, events[len(events)-1].SuccessCount)

	// Collections are processed in name order; each create precedes
	// its member adds.
	var sawBikeReady bool
	for _, event := range events {
		if event.Type == EventCollectionCreated && event.Collection == "Bike Storage" {
			sawBikeReady = true
		}
		if event.Type == EventProductAdded && event.Collection == "Bike Storage" {
			require.True(t, sawBikeReady, "product added before collection was ready")
		}
	}
}

func TestSyncStopsOnCancelledContext(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store, fastOptions()).Sync(ctx, testSession(), nil)
	require.ErrorIs(t, err, context.Canceled)
}
