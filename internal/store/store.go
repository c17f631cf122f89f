package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("run not found")

// RunRecord is one solver invocation's audit entry. Routes themselves are
// persisted by the calling service, not here.
type RunRecord struct {
	ID               string    `json:"id"`
	Mode             string    `json:"mode"` // cvrp or tsp
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	RoutesCount      int       `json:"routes_count"`
	AssignedStops    int       `json:"assigned_stops"`
	UnassignedStops  int       `json:"unassigned_stops"`
	TotalDistanceKm  float64   `json:"total_distance_km"`
	TotalTimeMinutes float64   `json:"total_time_minutes"`
	ComputationMs    int64     `json:"computation_ms"`
	EngineMetrics    []byte    `json:"engine_metrics,omitempty"` // JSON snapshot
}

// Store records solver runs for later inspection.
type Store interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
