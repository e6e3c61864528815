// Package geo provides pure great-circle distance math and display
// formatting for distances. Nothing here touches the network or validates
// coordinate ranges; callers are expected to pass in-range points.
package geo

import (
	"fmt"
	"math"

	"github.com/geonear/nearby-service/internal/types"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between a and b using the
// haversine formula. It is symmetric and returns 0 for coincident points.
func DistanceMeters(a, b types.GeoPoint) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Kilometers converts meters to kilometers.
func Kilometers(meters float64) float64 {
	return meters / 1000
}

// FormatDistance renders a distance for display: "450 m" below one
// kilometer, "2.3 km" below ten, "18 km" above. A nil or non-finite input
// yields the empty string.
func FormatDistance(meters *float64) string {
	if meters == nil || math.IsNaN(*meters) || math.IsInf(*meters, 0) {
		return ""
	}
	m := *meters
	if m < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(m)))
	}
	km := Kilometers(m)
	if km < 10 {
		return fmt.Sprintf("%.1f km", km)
	}
	return fmt.Sprintf("%.0f km", km)
}
