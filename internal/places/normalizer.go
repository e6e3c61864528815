package places

import (
	"fmt"
	"math"
	"strconv"

	"github.com/geonear/nearby-service/internal/types"
)

// RawPlace is one untyped record as the upstream API returns it.
type RawPlace map[string]any

// Normalize converts a loosely-typed upstream record into a canonical Place.
// A record without a numeric coordinate pair (latitude/longitude or lat/lng)
// is rejected; ok is false and the record is dropped without error. All other
// optional fields degrade to unset rather than failing the record.
func Normalize(raw RawPlace) (types.Place, bool) {
	lat, latOK := numberAt(raw, "latitude")
	if !latOK {
		lat, latOK = numberAt(raw, "lat")
	}
	lng, lngOK := numberAt(raw, "longitude")
	if !lngOK {
		lng, lngOK = numberAt(raw, "lng")
	}
	if !latOK || !lngOK {
		return types.Place{}, false
	}

	p := types.Place{
		ID:   stringAt(raw, "id"),
		Name: stringAt(raw, "name"),
		Location: types.GeoPoint{
			Latitude:  lat,
			Longitude: lng,
		},
		Category: categoryOf(raw),
		Address:  stringAt(raw, "address"),
		ImageURL: stringAt(raw, "image_url"),
	}

	if r, ok := ratingOf(raw); ok {
		p.Rating = &r
	}
	if v, ok := numberAt(raw, "price_level"); ok {
		level := int(v)
		p.PriceLevel = &level
	}
	return p, true
}

// NormalizeAll normalizes a batch, preserving input order and silently
// omitting rejected records. One malformed entry never fails the batch.
func NormalizeAll(raws []RawPlace) []types.Place {
	out := make([]types.Place, 0, len(raws))
	for _, raw := range raws {
		if p, ok := Normalize(raw); ok {
			out = append(out, p)
		}
	}
	return out
}

// categoryOf picks the first present category-ish field: explicit type,
// explicit category, first element of a type list, then primary_type.
func categoryOf(raw RawPlace) string {
	if s := stringAt(raw, "type"); s != "" {
		return s
	}
	if s := stringAt(raw, "category"); s != "" {
		return s
	}
	if list, ok := raw["types"].([]any); ok && len(list) > 0 {
		if s, ok := list[0].(string); ok && s != "" {
			return s
		}
	}
	return stringAt(raw, "primary_type")
}

// ratingOf coerces a rating from `rating`, then `user_rating`, then the
// nested `rating.value` shape some providers use.
func ratingOf(raw RawPlace) (float64, bool) {
	if v, ok := coerceNumber(raw["rating"]); ok {
		return v, true
	}
	if v, ok := coerceNumber(raw["user_rating"]); ok {
		return v, true
	}
	if nested, ok := raw["rating"].(map[string]any); ok {
		if v, ok := nested["value"].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func numberAt(raw RawPlace, key string) (float64, bool) {
	v, ok := raw[key].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// coerceNumber accepts JSON numbers and numeric strings.
func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// stringAt reads a field as a string, rendering integral JSON numbers as
// their decimal text so numeric IDs survive normalization.
func stringAt(raw RawPlace, key string) string {
	switch s := raw[key].(type) {
	case string:
		return s
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}
