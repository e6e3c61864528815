package places

import "strings"

const defaultPinColor = "#64748b"

// PinColorForCategory maps a place category to the marker color hex the map
// clients render. Unrecognized categories get a neutral slate.
func PinColorForCategory(category string) string {
	normalized := strings.ToLower(category)
	contains := func(substrings ...string) bool {
		for _, s := range substrings {
			if strings.Contains(normalized, s) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("park"):
		return "#22c55e"
	case contains("cafe", "coffee"):
		return "#a16207"
	case contains("restaurant", "food"):
		return "#ef4444"
	case contains("bar", "pub"):
		return "#8b5cf6"
	case contains("store", "shop", "market"):
		return "#06b6d4"
	case contains("museum", "art"):
		return "#f97316"
	default:
		return defaultPinColor
	}
}
