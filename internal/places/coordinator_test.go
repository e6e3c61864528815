package places

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonear/nearby-service/internal/types"
)

type fetcherFunc func(ctx context.Context, q types.NearbyQuery) ([]types.Place, error)

func (f fetcherFunc) FetchNearby(ctx context.Context, q types.NearbyQuery) ([]types.Place, error) {
	return f(ctx, q)
}

// countingFetcher records how many fetches actually hit the "network".
type countingFetcher struct {
	mu     sync.Mutex
	calls  int
	result []types.Place
	err    error
}

func (f *countingFetcher) FetchNearby(ctx context.Context, q types.NearbyQuery) ([]types.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func (f *countingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func baseQuery() types.NearbyQuery {
	return types.NearbyQuery{
		Center:   types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194},
		RadiusKm: 20,
		Type:     "cafe",
		Limit:    20,
	}
}

func TestCoordinator_InitialStateIsIdle(t *testing.T) {
	c := NewCoordinator(&countingFetcher{}, 0, nil, testLogger())
	snap := c.Snapshot()
	assert.Equal(t, types.StateIdle, snap.State)
	assert.Empty(t, snap.Places)
	assert.Empty(t, snap.ErrMessage)
}

func TestCoordinator_SuccessfulRefresh(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{placeAt("a", 1, 1)}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())

	snap := c.Snapshot()
	assert.Equal(t, types.StateLoaded, snap.State)
	require.Len(t, snap.Places, 1)
	assert.Equal(t, "a", snap.Places[0].ID)
	assert.Empty(t, snap.ErrMessage)
}

func TestCoordinator_EmptyResultIsLoadedNotErrored(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())

	snap := c.Snapshot()
	assert.Equal(t, types.StateLoaded, snap.State)
	assert.Empty(t, snap.Places)
	assert.Empty(t, snap.ErrMessage)
}

func TestCoordinator_DedupesJitterWithinTolerance(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{placeAt("a", 1, 1)}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())
	require.Equal(t, 1, fetcher.callCount())

	// Map-drag jitter: center moved well under the ~11m tolerance.
	jittered := baseQuery()
	jittered.Center = types.GeoPoint{Latitude: 37.77491, Longitude: -122.41941}
	c.RequestRefresh(context.Background(), jittered)

	assert.Equal(t, 1, fetcher.callCount(), "jittered refresh must not hit the network")
	snap := c.Snapshot()
	assert.Equal(t, types.StateLoaded, snap.State)
	require.Len(t, snap.Places, 1)
}

func TestCoordinator_RefetchesWhenQueryMateriallyChanges(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{placeAt("a", 1, 1)}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())

	moved := baseQuery()
	moved.Center = types.GeoPoint{Latitude: 37.7850, Longitude: -122.4194}
	c.RequestRefresh(context.Background(), moved)
	assert.Equal(t, 2, fetcher.callCount())

	retyped := moved
	retyped.Type = "park"
	c.RequestRefresh(context.Background(), retyped)
	assert.Equal(t, 3, fetcher.callCount())

	resized := retyped
	resized.RadiusKm = 5
	c.RequestRefresh(context.Background(), resized)
	assert.Equal(t, 4, fetcher.callCount())
}

func TestCoordinator_NoDedupeWhileResultSetEmpty(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())
	c.RequestRefresh(context.Background(), baseQuery())

	assert.Equal(t, 2, fetcher.callCount(), "empty result set never suppresses a refresh")
}

func TestCoordinator_FailureClearsPlacesAndSetsError(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{placeAt("a", 1, 1)}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())
	require.Equal(t, types.StateLoaded, c.Snapshot().State)

	fetcher.mu.Lock()
	fetcher.err = errors.New("boom")
	fetcher.mu.Unlock()

	moved := baseQuery()
	moved.Center = types.GeoPoint{Latitude: 38.0, Longitude: -122.0}
	c.RequestRefresh(context.Background(), moved)

	snap := c.Snapshot()
	assert.Equal(t, types.StateErrored, snap.State)
	assert.Empty(t, snap.Places, "stale results must not survive a failed fetch")
	assert.NotEmpty(t, snap.ErrMessage)
}

func TestCoordinator_RetryAfterFailureIsNotDeduped(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("boom")}
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	c.RequestRefresh(context.Background(), baseQuery())
	require.Equal(t, types.StateErrored, c.Snapshot().State)

	// Recovery: the identical retry must reach the network because failure
	// never advances the dedupe baseline.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.result = []types.Place{placeAt("a", 1, 1)}
	fetcher.mu.Unlock()

	c.RequestRefresh(context.Background(), baseQuery())

	assert.Equal(t, 2, fetcher.callCount())
	snap := c.Snapshot()
	assert.Equal(t, types.StateLoaded, snap.State)
	assert.Empty(t, snap.ErrMessage)
}

func TestCoordinator_StaleInFlightResultIsDiscarded(t *testing.T) {
	q1 := baseQuery()
	q1.Type = "cafe"
	q2 := baseQuery()
	q2.Type = "park"

	started1 := make(chan struct{})
	started2 := make(chan struct{})
	release1 := make(chan struct{})
	release2 := make(chan struct{})

	fetcher := fetcherFunc(func(ctx context.Context, q types.NearbyQuery) ([]types.Place, error) {
		switch q.Type {
		case "cafe":
			close(started1)
			<-release1
			return []types.Place{placeAt("from-q1", 1, 1)}, nil
		default:
			close(started2)
			<-release2
			return []types.Place{placeAt("from-q2", 2, 2)}, nil
		}
	})
	c := NewCoordinator(fetcher, 0, nil, testLogger())

	done1 := make(chan struct{})
	done2 := make(chan struct{})
	go func() {
		c.RequestRefresh(context.Background(), q1)
		close(done1)
	}()
	<-started1
	go func() {
		c.RequestRefresh(context.Background(), q2)
		close(done2)
	}()
	<-started2

	// Q2 resolves first and wins.
	close(release2)
	<-done2
	snap := c.Snapshot()
	require.Equal(t, types.StateLoaded, snap.State)
	require.Len(t, snap.Places, 1)
	assert.Equal(t, "from-q2", snap.Places[0].ID)

	// Q1 resolves late, for a superseded query: its result must be dropped.
	close(release1)
	select {
	case <-done1:
	case <-time.After(2 * time.Second):
		t.Fatal("stale refresh never returned")
	}
	snap = c.Snapshot()
	assert.Equal(t, types.StateLoaded, snap.State)
	require.Len(t, snap.Places, 1)
	assert.Equal(t, "from-q2", snap.Places[0].ID, "stale Q1 result must not clobber Q2 state")
}

func TestCoordinator_RankedUsesHeldResultSet(t *testing.T) {
	fetcher := &countingFetcher{result: []types.Place{
		placeAt("far", 10, 10),
		placeAt("near", 0.001, 0.001),
	}}
	c := NewCoordinator(fetcher, 0, nil, testLogger())
	c.RequestRefresh(context.Background(), baseQuery())

	ranked := c.Ranked(&types.GeoPoint{Latitude: 0, Longitude: 0})
	require.Len(t, ranked, 2)
	assert.Equal(t, "near", ranked[0].ID)
	assert.Equal(t, "far", ranked[1].ID)
}
