package nearby

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/geonear/nearby-service/internal/api"
	"github.com/geonear/nearby-service/internal/geo"
	"github.com/geonear/nearby-service/internal/places"
	"github.com/geonear/nearby-service/internal/types"
)

// Defaults carries the query defaults applied when the client omits them.
type Defaults struct {
	RadiusKm float64
	Limit    int
}

type Handler struct {
	logger   *slog.Logger
	service  Service
	defaults Defaults
}

func NewHandler(service Service, defaults Defaults, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		defaults: defaults,
	}
}

// rankedPlaceView is the wire shape for one ranked place, annotated with the
// display helpers the mobile clients render directly.
type rankedPlaceView struct {
	types.RankedPlace
	DistanceLabel string `json:"distance_label,omitempty"`
	PinColor      string `json:"pin_color"`
}

type nearbyResponse struct {
	Places []rankedPlaceView `json:"places"`
	Count  int               `json:"count"`
}

// detailsResponse wraps PlaceDetails with viewer-relative distance when the
// request carried a reference point.
type detailsResponse struct {
	*types.PlaceDetails
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	DistanceLabel  string   `json:"distance_label,omitempty"`
	PinColor       string   `json:"pin_color"`
}

// GetNearbyPlaces handles GET /api/v1/places/nearby. Required: lat, lng.
// Optional: radius (km), limit, type, and a ref_lat/ref_lng pair to rank
// against a viewer position other than the search center.
func (h *Handler) GetNearbyPlaces(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("NearbyHandler").Start(r.Context(), "GetNearbyPlaces")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetNearbyPlaces"))

	lat, err := parseFloatParam(r, "lat")
	if err != nil {
		span.SetStatus(codes.Error, "Invalid latitude")
		api.ErrorResponse(w, r, http.StatusBadRequest, "lat must be a valid number")
		return
	}
	lng, err := parseFloatParam(r, "lng")
	if err != nil {
		span.SetStatus(codes.Error, "Invalid longitude")
		api.ErrorResponse(w, r, http.StatusBadRequest, "lng must be a valid number")
		return
	}

	query := types.NearbyQuery{
		Center:   types.GeoPoint{Latitude: lat, Longitude: lng},
		RadiusKm: h.defaults.RadiusKm,
		Limit:    h.defaults.Limit,
		Type:     r.URL.Query().Get("type"),
	}
	if raw := r.URL.Query().Get("radius"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "radius must be a positive number")
			return
		}
		query.RadiusKm = radius
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}

	reference, err := parseReference(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ranked, err := h.service.GetNearby(ctx, query, reference)
	if err != nil {
		l.ErrorContext(ctx, "Failed to retrieve nearby places", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusBadGateway, "Failed to load places. Please retry.")
		return
	}

	views := make([]rankedPlaceView, len(ranked))
	for i, p := range ranked {
		views[i] = rankedPlaceView{
			RankedPlace:   p,
			DistanceLabel: geo.FormatDistance(p.DistanceMeters),
			PinColor:      places.PinColorForCategory(p.Category),
		}
	}

	l.InfoContext(ctx, "Returned nearby places", slog.Int("count", len(views)))
	span.SetStatus(codes.Ok, "Nearby places returned")
	api.WriteJSONResponse(w, r, http.StatusOK, nearbyResponse{Places: views, Count: len(views)})
}

// GetPlaceDetails handles GET /api/v1/places/{placeID}. An optional
// ref_lat/ref_lng pair annotates the response with the viewer's distance.
func (h *Handler) GetPlaceDetails(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("NearbyHandler").Start(r.Context(), "GetPlaceDetails")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetPlaceDetails"))

	placeID := chi.URLParam(r, "placeID")
	if placeID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "place ID is required")
		return
	}

	reference, err := parseReference(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.service.GetPlaceDetails(ctx, placeID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, types.ErrNotFound) {
			span.SetStatus(codes.Error, "Place not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "Place not found")
			return
		}
		l.ErrorContext(ctx, "Failed to retrieve place details",
			slog.String("place_id", placeID), slog.Any("error", err))
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusBadGateway, "Failed to load place details. Try again")
		return
	}

	resp := detailsResponse{
		PlaceDetails: details,
		PinColor:     places.PinColorForCategory(details.Category),
	}
	if reference != nil && details.Location != nil {
		distance := geo.DistanceMeters(*reference, *details.Location)
		resp.DistanceMeters = &distance
		resp.DistanceLabel = geo.FormatDistance(&distance)
	}

	span.SetStatus(codes.Ok, "Place details returned")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func parseFloatParam(r *http.Request, name string) (float64, error) {
	return strconv.ParseFloat(r.URL.Query().Get(name), 64)
}

// parseReference reads the optional ref_lat/ref_lng pair. Supplying only one
// half of the pair is an error; supplying neither yields nil.
func parseReference(r *http.Request) (*types.GeoPoint, error) {
	rawLat := r.URL.Query().Get("ref_lat")
	rawLng := r.URL.Query().Get("ref_lng")
	if rawLat == "" && rawLng == "" {
		return nil, nil
	}
	lat, latErr := strconv.ParseFloat(rawLat, 64)
	lng, lngErr := strconv.ParseFloat(rawLng, 64)
	if latErr != nil || lngErr != nil {
		return nil, errors.New("ref_lat and ref_lng must both be valid numbers")
	}
	return &types.GeoPoint{Latitude: lat, Longitude: lng}, nil
}
