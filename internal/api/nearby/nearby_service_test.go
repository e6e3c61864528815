package nearby

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/geonear/nearby-service/internal/types"
)

// MockUpstream is a mock implementation of Upstream
type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) FetchNearby(ctx context.Context, q types.NearbyQuery) ([]types.Place, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Place), args.Error(1)
}

func (m *MockUpstream) FetchPlaceByID(ctx context.Context, id string) (*types.PlaceDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PlaceDetails), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(upstream Upstream) *ServiceImpl {
	return NewServiceImpl(upstream, time.Minute, time.Minute, nil, testLogger())
}

func sampleQuery() types.NearbyQuery {
	return types.NearbyQuery{
		Center:   types.GeoPoint{Latitude: 0, Longitude: 0},
		RadiusKm: 20,
		Limit:    20,
	}
}

func samplePlaces() []types.Place {
	return []types.Place{
		{ID: "far", Location: types.GeoPoint{Latitude: 10, Longitude: 10}},
		{ID: "near", Location: types.GeoPoint{Latitude: 0.001, Longitude: 0.001}},
	}
}

func TestGetNearby_RanksAgainstQueryCenterByDefault(t *testing.T) {
	upstream := new(MockUpstream)
	upstream.On("FetchNearby", mock.Anything, sampleQuery()).Return(samplePlaces(), nil).Once()
	service := newTestService(upstream)

	ranked, err := service.GetNearby(context.Background(), sampleQuery(), nil)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "near", ranked[0].ID)
	assert.Equal(t, "far", ranked[1].ID)
	require.NotNil(t, ranked[0].DistanceMeters)
	upstream.AssertExpectations(t)
}

func TestGetNearby_RanksAgainstExplicitReference(t *testing.T) {
	upstream := new(MockUpstream)
	upstream.On("FetchNearby", mock.Anything, sampleQuery()).Return(samplePlaces(), nil).Once()
	service := newTestService(upstream)

	// Viewer standing next to "far": the order flips.
	reference := &types.GeoPoint{Latitude: 10, Longitude: 10}
	ranked, err := service.GetNearby(context.Background(), sampleQuery(), reference)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "far", ranked[0].ID)
	upstream.AssertExpectations(t)
}

func TestGetNearby_CachesNormalizedResultSet(t *testing.T) {
	upstream := new(MockUpstream)
	upstream.On("FetchNearby", mock.Anything, sampleQuery()).Return(samplePlaces(), nil).Once()
	service := newTestService(upstream)

	_, err := service.GetNearby(context.Background(), sampleQuery(), nil)
	require.NoError(t, err)

	// Second identical query is served from cache, but re-ranked for the
	// new reference point.
	reference := &types.GeoPoint{Latitude: 10, Longitude: 10}
	ranked, err := service.GetNearby(context.Background(), sampleQuery(), reference)
	require.NoError(t, err)
	assert.Equal(t, "far", ranked[0].ID)
	upstream.AssertExpectations(t)
}

func TestGetNearby_DistinctQueriesAreNotConflated(t *testing.T) {
	upstream := new(MockUpstream)
	q1 := sampleQuery()
	q2 := sampleQuery()
	q2.Type = "park"
	upstream.On("FetchNearby", mock.Anything, q1).Return(samplePlaces(), nil).Once()
	upstream.On("FetchNearby", mock.Anything, q2).Return([]types.Place{}, nil).Once()
	service := newTestService(upstream)

	first, err := service.GetNearby(context.Background(), q1, nil)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := service.GetNearby(context.Background(), q2, nil)
	require.NoError(t, err)
	assert.Empty(t, second)
	upstream.AssertExpectations(t)
}

func TestGetNearby_UpstreamFailurePropagates(t *testing.T) {
	upstream := new(MockUpstream)
	upstream.On("FetchNearby", mock.Anything, mock.Anything).Return(nil, types.ErrUpstream)
	service := newTestService(upstream)

	_, err := service.GetNearby(context.Background(), sampleQuery(), nil)
	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestGetNearby_FailureIsNotCached(t *testing.T) {
	upstream := new(MockUpstream)
	upstream.On("FetchNearby", mock.Anything, sampleQuery()).Return(nil, types.ErrUpstream).Once()
	upstream.On("FetchNearby", mock.Anything, sampleQuery()).Return(samplePlaces(), nil).Once()
	service := newTestService(upstream)

	_, err := service.GetNearby(context.Background(), sampleQuery(), nil)
	require.Error(t, err)

	ranked, err := service.GetNearby(context.Background(), sampleQuery(), nil)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
	upstream.AssertExpectations(t)
}

func TestGetPlaceDetails_CachesByID(t *testing.T) {
	upstream := new(MockUpstream)
	details := &types.PlaceDetails{ID: "p1", Name: "Golden Gate Cafe"}
	upstream.On("FetchPlaceByID", mock.Anything, "p1").Return(details, nil).Once()
	service := newTestService(upstream)

	first, err := service.GetPlaceDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Golden Gate Cafe", first.Name)

	second, err := service.GetPlaceDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	upstream.AssertExpectations(t)
}

func TestGetPlaceDetails_NotFoundPropagates(t *testing.T) {
	upstream := new(MockUpstream)
	upstream.On("FetchPlaceByID", mock.Anything, "ghost").Return(nil, types.ErrNotFound)
	service := newTestService(upstream)

	_, err := service.GetPlaceDetails(context.Background(), "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
