package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"medroute/internal/model"
)

// Remote calls an OpenRouteService-style matrix endpoint. Requests are
// rate-limited because matrix quotas on the free tiers are tight.
type Remote struct {
	BaseURL string
	APIKey  string
	Profile string // e.g. driving-car
	HTTP    *http.Client
	Limiter *rate.Limiter
}

func NewRemote(baseURL, apiKey string, perSecond float64) *Remote {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Remote{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Profile: "driving-car",
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

type matrixRequest struct {
	Locations [][]float64 `json:"locations"` // lng,lat pairs
	Metrics   []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"` // meters; null when unreachable
	Durations [][]*float64 `json:"durations"` // seconds
}

func (r *Remote) Matrix(ctx context.Context, points []model.GeoPoint) (model.TravelMatrix, error) {
	if len(points) == 0 {
		return model.TravelMatrix{DistanceKm: [][]float64{}, DurationMinutes: [][]float64{}}, nil
	}
	if err := r.Limiter.Wait(ctx); err != nil {
		return model.TravelMatrix{}, fmt.Errorf("matrix rate limit: %w", err)
	}

	locations := make([][]float64, 0, len(points))
	for _, p := range points {
		locations = append(locations, []float64{p.Lng, p.Lat})
	}
	payload, err := json.Marshal(matrixRequest{Locations: locations, Metrics: []string{"distance", "duration"}})
	if err != nil {
		return model.TravelMatrix{}, fmt.Errorf("marshal matrix request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", r.BaseURL, r.Profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.TravelMatrix{}, fmt.Errorf("build matrix request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", r.APIKey)
	}

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return model.TravelMatrix{}, fmt.Errorf("matrix request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.TravelMatrix{}, fmt.Errorf("matrix request: unexpected status %d", resp.StatusCode)
	}

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return model.TravelMatrix{}, fmt.Errorf("decode matrix response: %w", err)
	}
	if len(mr.Distances) != len(points) || len(mr.Durations) != len(points) {
		return model.TravelMatrix{}, fmt.Errorf("matrix response: got %dx%d, want %d rows",
			len(mr.Distances), len(mr.Durations), len(points))
	}

	n := len(points)
	dist := make([][]float64, n)
	dur := make([][]float64, n)
	for i := 0; i < n; i++ {
		if len(mr.Distances[i]) != n || len(mr.Durations[i]) != n {
			return model.TravelMatrix{}, fmt.Errorf("matrix response: row %d not square", i)
		}
		dist[i] = make([]float64, n)
		dur[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if mr.Distances[i][j] == nil || mr.Durations[i][j] == nil {
				dist[i][j] = UnreachableKm
				dur[i][j] = UnreachableKm
				continue
			}
			dist[i][j] = *mr.Distances[i][j] / 1000
			dur[i][j] = *mr.Durations[i][j] / 60
		}
	}
	return model.TravelMatrix{DistanceKm: dist, DurationMinutes: dur}, nil
}
