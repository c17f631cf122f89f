package model

// Core domain types shared by the solver, validator, and matrix provider.

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Vehicle describes one fleet vehicle. Inputs are never mutated by a solve.
type Vehicle struct {
	ID               string    `json:"id"`
	CapacityKg       float64   `json:"capacity_kg"`
	CapacityM3       float64   `json:"capacity_m3"`
	HasRefrigeration bool      `json:"has_refrigeration"`
	MaxStops         int       `json:"max_stops"`
	CostPerKm        float64   `json:"cost_per_km"`
	AvgSpeedKmh      float64   `json:"avg_speed_kmh"`
	IsAvailable      bool      `json:"is_available"`
	Start            *GeoPoint `json:"start,omitempty"` // overrides the shared depot
	End              *GeoPoint `json:"end,omitempty"`
}

// DefaultMaxStops applies to vehicles that do not declare a stop limit.
const DefaultMaxStops = 20

// MaxStopsLimit returns the vehicle's stop limit, falling back to
// DefaultMaxStops when none is declared. Capacities are taken literally; a
// zero capacity really is a vehicle that can carry nothing.
func (v Vehicle) MaxStopsLimit() int {
	if v.MaxStops > 0 {
		return v.MaxStops
	}
	return DefaultMaxStops
}

// Stop is one routable delivery or visit. Priority 1 is the most urgent;
// larger numbers are progressively more droppable.
type Stop struct {
	ID                 string   `json:"id"`
	WeightKg           float64  `json:"weight_kg"`
	VolumeM3           float64  `json:"volume_m3"`
	RequiresColdChain  bool     `json:"requires_cold_chain"`
	Priority           int      `json:"priority"`
	ServiceTimeMinutes float64  `json:"service_time_minutes"`
	Location           GeoPoint `json:"location"`
}

// TravelMatrix holds the two parallel square matrices over depot + stops.
// Both must have identical dimensions with a zero diagonal.
type TravelMatrix struct {
	DistanceKm      [][]float64 `json:"distances_km"`
	DurationMinutes [][]float64 `json:"durations_minutes"`
}

// RouteStop is one entry in a route's ordered sequence. Depot entries carry
// an empty StopID and LocationIndex equal to the problem's depot index.
type RouteStop struct {
	StopID               string  `json:"stop_id,omitempty"`
	LocationIndex        int     `json:"location_index"`
	SequenceOrder        int     `json:"sequence_order"`
	DistanceFromPrevKm   float64 `json:"distance_from_previous_km"`
	ArrivalOffsetMinutes float64 `json:"arrival_offset_minutes"`
	CumulativeLoadKg     float64 `json:"cumulative_load_kg"`
	CumulativeLoadM3     float64 `json:"cumulative_load_m3"`
}

// Route is the ordered tour of one used vehicle, depot to depot.
type Route struct {
	VehicleID        string      `json:"vehicle_id"`
	Stops            []RouteStop `json:"stops"`
	TotalDistanceKm  float64     `json:"total_distance_km"`
	TotalTimeMinutes float64     `json:"total_time_minutes"`
	TotalLoadKg      float64     `json:"total_load_kg"`
	TotalLoadM3      float64     `json:"total_load_m3"`
	StopsCount       int         `json:"stops_count"`
}

// Solution is the CVRP output contract. UnassignedStopIDs preserves the
// input order of the dropped stops. Status is "failed" only when nothing
// could be placed at all; partial coverage is still a success.
type Solution struct {
	Status            string   `json:"status"`
	Routes            []Route  `json:"routes"`
	UnassignedStopIDs []string `json:"unassigned_stop_ids"`
	TotalDistanceKm   float64  `json:"total_distance_km"`
	TotalTimeMinutes  float64  `json:"total_time_minutes"`
	TotalCost         float64  `json:"total_cost"`
	OptimizationScore float64  `json:"optimization_score"`
	ComputationMs     int64    `json:"computation_ms"`
	Error             string   `json:"error,omitempty"`
}

// TSPResult is the sequencer output contract.
type TSPResult struct {
	Sequence         []int   `json:"sequence"`
	TotalDistanceKm  float64 `json:"total_distance_km"`
	TotalTimeMinutes float64 `json:"total_time_minutes"`
}

// ValidationResult aggregates human-readable findings from the solution
// validator. Warnings never affect IsValid.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
