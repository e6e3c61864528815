package places

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/geonear/nearby-service/internal/types"
)

// DefaultDedupeToleranceDegrees is the per-axis center tolerance under which
// two queries count as the same position, roughly 11 meters. Tunable via the
// coordinator constructor; this default matches the map-drag jitter the
// mobile clients produce.
const DefaultDedupeToleranceDegrees = 0.0001

// NearbyFetcher is the coordinator's fetch dependency, satisfied by *Client.
type NearbyFetcher interface {
	FetchNearby(ctx context.Context, q types.NearbyQuery) ([]types.Place, error)
}

// DedupeObserver counts refreshes suppressed by the proximity rule.
type DedupeObserver interface {
	ObserveDedupeSkip(ctx context.Context)
}

// Snapshot is a point-in-time copy of the coordinator's state.
// ErrMessage is non-empty only in StateErrored.
type Snapshot struct {
	State      types.FetchState
	Places     []types.Place
	ErrMessage string
}

// Coordinator owns the current nearby query lifecycle for one query context
// (one map screen): it decides when a refresh actually needs the network,
// tracks idle/loading/loaded/errored state, and guarantees that a stale
// in-flight fetch never overwrites the result of a newer one. It is safe for
// concurrent use.
type Coordinator struct {
	logger    *slog.Logger
	fetcher   NearbyFetcher
	tolerance float64
	observer  DedupeObserver

	mu          sync.Mutex
	state       types.FetchState
	places      []types.Place
	errMessage  string
	lastSuccess *types.NearbyQuery
	generation  uint64
}

// NewCoordinator creates a coordinator. toleranceDegrees <= 0 selects
// DefaultDedupeToleranceDegrees; observer may be nil.
func NewCoordinator(fetcher NearbyFetcher, toleranceDegrees float64, observer DedupeObserver, logger *slog.Logger) *Coordinator {
	if toleranceDegrees <= 0 {
		toleranceDegrees = DefaultDedupeToleranceDegrees
	}
	return &Coordinator{
		logger:    logger,
		fetcher:   fetcher,
		tolerance: toleranceDegrees,
		observer:  observer,
		state:     types.StateIdle,
	}
}

// RequestRefresh is the single entry point for center, radius, or type
// changes and for explicit reloads. It blocks until the fetch settles (or is
// skipped) and converts failures into coordinator state rather than
// returning them.
//
// A refresh is skipped when the last successfully completed query matches
// the incoming one (center within tolerance on both axes, radius, type, and
// limit identical) and a non-empty result set is already held. Failed
// queries never become the dedupe baseline, so retrying after an error
// always reaches the network.
func (c *Coordinator) RequestRefresh(ctx context.Context, q types.NearbyQuery) {
	c.mu.Lock()
	if c.shouldSkipLocked(q) {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Refresh skipped, query within dedupe tolerance",
			slog.Float64("lat", q.Center.Latitude), slog.Float64("lng", q.Center.Longitude))
		if c.observer != nil {
			c.observer.ObserveDedupeSkip(ctx)
		}
		return
	}

	c.generation++
	generation := c.generation
	c.state = types.StateLoading
	c.errMessage = ""
	c.mu.Unlock()

	result, err := c.fetcher.FetchNearby(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		// A newer query superseded this one while it was in flight.
		c.logger.InfoContext(ctx, "Discarding stale fetch result",
			slog.Uint64("generation", generation), slog.Uint64("latest", c.generation))
		return
	}
	if err != nil {
		c.places = nil
		c.state = types.StateErrored
		c.errMessage = "Failed to load places. Please retry."
		c.logger.ErrorContext(ctx, "Nearby fetch failed", slog.Any("error", err))
		return
	}
	c.places = result
	c.state = types.StateLoaded
	last := q
	c.lastSuccess = &last
}

// Snapshot returns a copy of the current state; the returned place slice is
// detached from the coordinator's own.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Snapshot{State: c.state, ErrMessage: c.errMessage}
	if len(c.places) > 0 {
		out.Places = make([]types.Place, len(c.places))
		copy(out.Places, c.places)
	}
	return out
}

// Ranked returns the held result set ranked against reference (see Rank).
func (c *Coordinator) Ranked(reference *types.GeoPoint) []types.RankedPlace {
	return Rank(c.Snapshot().Places, reference)
}

func (c *Coordinator) shouldSkipLocked(q types.NearbyQuery) bool {
	prev := c.lastSuccess
	return prev != nil &&
		len(c.places) > 0 &&
		math.Abs(prev.Center.Latitude-q.Center.Latitude) < c.tolerance &&
		math.Abs(prev.Center.Longitude-q.Center.Longitude) < c.tolerance &&
		prev.RadiusKm == q.RadiusKm &&
		prev.Type == q.Type &&
		prev.Limit == q.Limit
}
