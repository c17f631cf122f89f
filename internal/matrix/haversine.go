package matrix

import (
	"context"
	"math"

	"medroute/internal/model"
)

const defaultSpeedKmh = 30

// Haversine is the geometric fallback provider: great-circle distances and
// constant-speed travel times. It never fails and needs no network.
type Haversine struct {
	SpeedKmh float64
}

func (h Haversine) Matrix(_ context.Context, points []model.GeoPoint) (model.TravelMatrix, error) {
	speed := h.SpeedKmh
	if speed <= 0 {
		speed = defaultSpeedKmh
	}
	n := len(points)
	dist := make([][]float64, n)
	dur := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		dur[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			km := haversineKm(points[i].Lat, points[i].Lng, points[j].Lat, points[j].Lng)
			dist[i][j] = km
			dur[i][j] = km / speed * 60
		}
	}
	return model.TravelMatrix{DistanceKm: dist, DurationMinutes: dur}, nil
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
