package places

import (
	"encoding/json"
	"fmt"

	"github.com/geonear/nearby-service/internal/types"
)

// knownDetailKeys are the detail fields decoded into typed fields; anything
// else ends up in PlaceDetails.Extra.
var knownDetailKeys = map[string]struct{}{
	"id": {}, "name": {}, "type": {}, "category": {}, "types": {},
	"primary_type": {}, "address": {}, "lat": {}, "lng": {},
	"latitude": {}, "longitude": {}, "phone": {}, "website": {},
	"rating": {}, "user_rating": {}, "price_level": {}, "hours": {},
	"image_url": {}, "description": {},
}

// decodeDetails shapes an upstream details payload into a PlaceDetails.
// Missing ID falls back to the requested one; missing name to "Unknown".
func decodeDetails(requestedID string, body []byte) (*types.PlaceDetails, error) {
	var raw RawPlace
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode details: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode details: %v", err)
	}

	d := &types.PlaceDetails{
		ID:          stringAt(raw, "id"),
		Name:        stringAt(raw, "name"),
		Category:    categoryOf(raw),
		Address:     stringAt(raw, "address"),
		Phone:       stringAt(raw, "phone"),
		Website:     stringAt(raw, "website"),
		ImageURL:    stringAt(raw, "image_url"),
		Description: stringAt(raw, "description"),
	}
	if d.ID == "" {
		d.ID = requestedID
	}
	if d.Name == "" {
		d.Name = "Unknown"
	}

	// Details payloads favor the short lat/lng names.
	lat, latOK := numberAt(raw, "lat")
	if !latOK {
		lat, latOK = numberAt(raw, "latitude")
	}
	lng, lngOK := numberAt(raw, "lng")
	if !lngOK {
		lng, lngOK = numberAt(raw, "longitude")
	}
	if latOK && lngOK {
		d.Location = &types.GeoPoint{Latitude: lat, Longitude: lng}
	}

	if r, ok := ratingOf(raw); ok {
		d.Rating = &r
	}
	if v, ok := numberAt(raw, "price_level"); ok {
		level := int(v)
		d.PriceLevel = &level
	}
	if hours, ok := raw["hours"].(map[string]any); ok && len(hours) > 0 {
		d.Hours = make(map[string]string, len(hours))
		for day, v := range hours {
			d.Hours[day] = fmt.Sprintf("%v", v)
		}
	}

	for key, value := range fields {
		if _, known := knownDetailKeys[key]; known {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[key] = value
	}
	return d, nil
}
