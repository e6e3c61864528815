package nearby

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/geonear/nearby-service/internal/places"
	"github.com/geonear/nearby-service/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for the nearby-places facade.
type Service interface {
	GetNearby(ctx context.Context, q types.NearbyQuery, reference *types.GeoPoint) ([]types.RankedPlace, error)
	GetPlaceDetails(ctx context.Context, id string) (*types.PlaceDetails, error)
}

// Upstream is the pipeline client dependency, satisfied by *places.Client.
type Upstream interface {
	FetchNearby(ctx context.Context, q types.NearbyQuery) ([]types.Place, error)
	FetchPlaceByID(ctx context.Context, id string) (*types.PlaceDetails, error)
}

// CacheObserver counts cache hits; may be nil.
type CacheObserver interface {
	ObserveCacheHit(ctx context.Context, kind string)
}

// ServiceImpl composes the retrieval pipeline per request: fetch,
// normalize (inside the client), rank. Normalized result sets are cached
// briefly keyed by the full query, details records longer; concurrent
// identical lookups are coalesced so one upstream call serves them all.
type ServiceImpl struct {
	logger     *slog.Logger
	upstream   Upstream
	cache      *cache.Cache
	group      singleflight.Group
	nearbyTTL  time.Duration
	detailsTTL time.Duration
	observer   CacheObserver
}

func NewServiceImpl(upstream Upstream, nearbyTTL, detailsTTL time.Duration, observer CacheObserver, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		upstream:   upstream,
		cache:      cache.New(detailsTTL, 10*time.Minute),
		nearbyTTL:  nearbyTTL,
		detailsTTL: detailsTTL,
		observer:   observer,
	}
}

// GetNearby returns the ranked places around the query center. Ranking runs
// against reference when supplied, falling back to the query center, so a
// cached result set still ranks correctly for a different viewer position.
func (s *ServiceImpl) GetNearby(ctx context.Context, q types.NearbyQuery, reference *types.GeoPoint) ([]types.RankedPlace, error) {
	ctx, span := otel.Tracer("NearbyService").Start(ctx, "GetNearby")
	defer span.End()

	if reference == nil {
		center := q.Center
		reference = &center
	}

	key := nearbyCacheKey(q)
	span.SetAttributes(attribute.String("cache.key", key))
	if cached, found := s.cache.Get(key); found {
		if s.observer != nil {
			s.observer.ObserveCacheHit(ctx, "nearby")
		}
		span.SetAttributes(attribute.Bool("cache.hit", true))
		span.SetStatus(codes.Ok, "Nearby places served from cache")
		return places.Rank(cached.([]types.Place), reference), nil
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		fetched, err := s.upstream.FetchNearby(ctx, q)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, fetched, s.nearbyTTL)
		return fetched, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch nearby places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream fetch failed")
		return nil, err
	}

	ranked := places.Rank(result.([]types.Place), reference)
	span.SetAttributes(attribute.Int("result.count", len(ranked)))
	span.SetStatus(codes.Ok, "Nearby places ranked")
	return ranked, nil
}

// GetPlaceDetails returns the detailed record for one place, cached per ID.
func (s *ServiceImpl) GetPlaceDetails(ctx context.Context, id string) (*types.PlaceDetails, error) {
	ctx, span := otel.Tracer("NearbyService").Start(ctx, "GetPlaceDetails")
	defer span.End()
	span.SetAttributes(attribute.String("place.id", id))

	key := "details:" + id
	if cached, found := s.cache.Get(key); found {
		if s.observer != nil {
			s.observer.ObserveCacheHit(ctx, "details")
		}
		span.SetAttributes(attribute.Bool("cache.hit", true))
		span.SetStatus(codes.Ok, "Place details served from cache")
		return cached.(*types.PlaceDetails), nil
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		details, err := s.upstream.FetchPlaceByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, details, s.detailsTTL)
		return details, nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch place details",
			slog.String("place_id", id), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream details fetch failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Place details fetched")
	return result.(*types.PlaceDetails), nil
}

func nearbyCacheKey(q types.NearbyQuery) string {
	return fmt.Sprintf("nearby:%.6f:%.6f:%g:%s:%d",
		q.Center.Latitude, q.Center.Longitude, q.RadiusKm, q.Type, q.Limit)
}
