package places

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/geonear/nearby-service/internal/types"
)

func benchmarkPlaces(n int) []types.Place {
	rng := rand.New(rand.NewSource(42))
	out := make([]types.Place, n)
	for i := range out {
		out[i] = types.Place{
			ID:   fmt.Sprintf("p%d", i),
			Name: "Place",
			Location: types.GeoPoint{
				Latitude:  37.7 + rng.Float64()*0.2,
				Longitude: -122.5 + rng.Float64()*0.2,
			},
		}
	}
	return out
}

func benchmarkRaws(n int) []RawPlace {
	out := make([]RawPlace, n)
	for i := range out {
		out[i] = RawPlace{
			"id":     fmt.Sprintf("p%d", i),
			"name":   "Place",
			"lat":    37.7 + float64(i)*0.0001,
			"lng":    -122.4,
			"type":   "cafe",
			"rating": 4.2,
		}
	}
	return out
}

func BenchmarkRank(b *testing.B) {
	list := benchmarkPlaces(200)
	ref := &types.GeoPoint{Latitude: 37.7749, Longitude: -122.4194}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Rank(list, ref)
	}
}

func BenchmarkNormalizeAll(b *testing.B) {
	raws := benchmarkRaws(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NormalizeAll(raws)
	}
}
