// Package places implements the nearby-places retrieval pipeline: the
// upstream API client, the normalization boundary, the retrieval
// coordinator, and the distance ranking stage.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/geonear/nearby-service/internal/types"
)

// HTTPDoer is the outbound HTTP dependency, satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestObserver measures upstream calls. A nil observer is valid.
type RequestObserver interface {
	ObserveUpstreamRequest(ctx context.Context, route string, duration time.Duration, err error)
	ObserveDroppedRecords(ctx context.Context, count int)
}

// Client talks to the remote places API. It owns no state beyond its
// configuration; callers own all result handling.
type Client struct {
	logger   *slog.Logger
	http     HTTPDoer
	baseURL  string
	limiter  *rate.Limiter
	observer RequestObserver
}

// NewClient creates an upstream places API client. requestsPerSecond bounds
// outbound request rate; observer may be nil.
func NewClient(baseURL string, httpClient HTTPDoer, requestsPerSecond int, observer RequestObserver, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("empty baseURL")
	}
	if httpClient == nil {
		return nil, errors.New("empty HTTP client")
	}
	if requestsPerSecond <= 0 {
		return nil, errors.New("requestsPerSecond must be a positive number")
	}
	return &Client{
		logger:   logger,
		http:     httpClient,
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		observer: observer,
	}, nil
}

// FetchNearby requests places around the query center and returns the
// normalized result set in upstream order. Out-of-range coordinates are
// clamped to valid ranges before transmission rather than rejected. All
// transport and status failures surface uniformly as types.ErrUpstream.
func (c *Client) FetchNearby(ctx context.Context, q types.NearbyQuery) ([]types.Place, error) {
	ctx, span := otel.Tracer("PlacesClient").Start(ctx, "FetchNearby")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	lat := clamp(q.Center.Latitude, -90, 90)
	lng := clamp(q.Center.Longitude, -180, 180)

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	values.Set("radius", strconv.FormatFloat(q.RadiusKm, 'f', -1, 64))
	values.Set("limit", strconv.Itoa(q.Limit))
	if q.Type != "" && q.Type != types.TypeAll {
		values.Set("type", q.Type)
	}
	span.SetAttributes(
		attribute.Float64("query.lat", lat),
		attribute.Float64("query.lng", lng),
		attribute.Float64("query.radius_km", q.RadiusKm),
		attribute.String("query.type", q.Type),
	)

	body, err := c.get(ctx, "/api/places/nearby", values.Encode(), "nearby")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream nearby request failed")
		return nil, err
	}

	raws, err := decodePlaceList(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream nearby payload unreadable")
		return nil, fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}

	normalized := NormalizeAll(raws)
	if dropped := len(raws) - len(normalized); dropped > 0 {
		c.logger.WarnContext(ctx, "Dropped malformed upstream records",
			slog.Int("dropped", dropped), slog.Int("received", len(raws)))
		if c.observer != nil {
			c.observer.ObserveDroppedRecords(ctx, dropped)
		}
	}

	span.SetAttributes(attribute.Int("result.count", len(normalized)))
	span.SetStatus(codes.Ok, "Nearby places fetched")
	return normalized, nil
}

// FetchPlaceByID requests the detailed record for one place. Unknown fields
// are preserved in the result's Extra map. A 404 maps to types.ErrNotFound;
// any other failure to types.ErrUpstream.
func (c *Client) FetchPlaceByID(ctx context.Context, id string) (*types.PlaceDetails, error) {
	ctx, span := otel.Tracer("PlacesClient").Start(ctx, "FetchPlaceByID")
	defer span.End()
	span.SetAttributes(attribute.String("place.id", id))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "/api/places/"+url.PathEscape(id), "", "details")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream details request failed")
		return nil, err
	}

	details, err := decodeDetails(id, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upstream details payload unreadable")
		return nil, fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}
	span.SetStatus(codes.Ok, "Place details fetched")
	return details, nil
}

// get issues one upstream GET and returns the response body. route labels
// the request for the observer.
func (c *Client) get(ctx context.Context, path, rawQuery, route string) ([]byte, error) {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	target.Path = path
	target.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if c.observer != nil {
		c.observer.ObserveUpstreamRequest(ctx, route, time.Since(start), err)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Upstream request failed",
			slog.String("route", route), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", types.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "Upstream response not ok",
			slog.String("route", route), slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", types.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", types.ErrUpstream, err)
	}
	return body, nil
}

// decodePlaceList accepts either a bare JSON array of place records or an
// object wrapping the same array under "places". Any other valid JSON shape
// is an empty result, not an error; only an unparsable body fails.
func decodePlaceList(body []byte) ([]RawPlace, error) {
	var bare []RawPlace
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Places []RawPlace `json:"places"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return wrapped.Places, nil
	}

	if !json.Valid(body) {
		return nil, errors.New("invalid JSON payload")
	}
	return nil, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
