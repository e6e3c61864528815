package places

import (
	"math"
	"sort"

	"github.com/geonear/nearby-service/internal/geo"
	"github.com/geonear/nearby-service/internal/types"
)

// Rank annotates each place with its great-circle distance from reference
// and returns a new slice sorted ascending by that distance. The sort is
// stable, so equal distances keep their input order. A nil reference leaves
// the input order untouched with no distances populated. Places whose
// distance cannot be computed order last. The input slice is never mutated.
func Rank(list []types.Place, reference *types.GeoPoint) []types.RankedPlace {
	ranked := make([]types.RankedPlace, len(list))
	for i, p := range list {
		ranked[i] = types.RankedPlace{Place: p}
	}
	if reference == nil {
		return ranked
	}

	for i := range ranked {
		d := geo.DistanceMeters(*reference, ranked[i].Location)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		distance := d
		ranked[i].DistanceMeters = &distance
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return sortDistance(ranked[i]) < sortDistance(ranked[j])
	})
	return ranked
}

func sortDistance(p types.RankedPlace) float64 {
	if p.DistanceMeters == nil {
		return math.Inf(1)
	}
	return *p.DistanceMeters
}
