package types

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound indicates the upstream API has no place with the requested ID.
	ErrNotFound = errors.New("requested place not found")
	// ErrUpstream indicates the upstream places API request failed (network
	// error or non-2xx status). Callers treat all upstream failures uniformly.
	ErrUpstream = errors.New("upstream places request failed")
)

// GeoPoint is an immutable WGS84 coordinate pair.
// Latitude is in [-90, 90], longitude in [-180, 180].
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NearbyQuery describes one logical nearby-places request.
type NearbyQuery struct {
	Center   GeoPoint `json:"center"`
	RadiusKm float64  `json:"radius_km"`
	// Type filters results by place type. Empty string and TypeAll both mean
	// "no filter" and are omitted from the upstream request.
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit"`
}

// TypeAll is the sentinel type value meaning "no type filter".
const TypeAll = "all"

// PlaceTypes are the type filter values the mobile clients expose.
var PlaceTypes = []string{
	"restaurant", "cafe", "gas_station", "bank", "pharmacy",
	"lodging", "park", "gym", "hospital", "shopping_mall", TypeAll,
}

// Place is the canonical place record. Instances are produced exclusively by
// the normalizer; the ID is the upstream identifier, opaque and unique only
// within a single result set.
type Place struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Location   GeoPoint `json:"location"`
	Category   string   `json:"category,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	PriceLevel *int     `json:"price_level,omitempty"`
	Address    string   `json:"address,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// RankedPlace is a Place annotated with its distance from a reference point.
// It is derived state: recomputed whenever the place set or the reference
// point changes, never persisted. A nil DistanceMeters means no reference
// point was available and orders as +Inf.
type RankedPlace struct {
	Place
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// PlaceDetails carries the richer record behind GET /api/places/{id}.
// Location is nil when the upstream record has no usable coordinates.
// Fields outside the known set are kept opaquely in Extra.
type PlaceDetails struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Category    string            `json:"category,omitempty"`
	Address     string            `json:"address,omitempty"`
	Location    *GeoPoint         `json:"location,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Website     string            `json:"website,omitempty"`
	Rating      *float64          `json:"rating,omitempty"`
	PriceLevel  *int              `json:"price_level,omitempty"`
	Hours       map[string]string `json:"hours,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	Description string            `json:"description,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// FetchState is the retrieval coordinator's lifecycle state.
type FetchState string

const (
	StateIdle    FetchState = "idle"
	StateLoading FetchState = "loading"
	StateLoaded  FetchState = "loaded"
	StateErrored FetchState = "errored"
)
