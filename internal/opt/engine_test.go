package opt

import (
	"fmt"
	"math"
	"testing"
	"time"

	"medroute/internal/model"
	"medroute/internal/validate"
)

func testOptions() Options {
	return Options{TimeBudget: 150 * time.Millisecond, IterationLimit: 300}
}

func scaleMatrix(m [][]float64, f float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, len(m[i]))
		for j := range m[i] {
			out[i][j] = m[i][j] * f
		}
	}
	return out
}

// Single vehicle, two nearby stops: the tour depot->1->2->depot (or its
// mirror) costs 33 km and must be found.
func TestSolveTwoStopsSingleVehicle(t *testing.T) {
	vehicles := []model.Vehicle{{
		ID: "v1", CapacityKg: 1000, CapacityM3: 10, MaxStops: 20, IsAvailable: true,
	}}
	stops := []model.Stop{
		{ID: "s1", WeightKg: 50, VolumeM3: 1},
		{ID: "s2", WeightKg: 75, VolumeM3: 1.5},
	}
	dist := [][]float64{{0, 10, 15}, {10, 0, 8}, {15, 8, 0}}
	p, err := NewProblem(vehicles, stops, dist, scaleMatrix(dist, 2), 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}

	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusSuccess {
		t.Fatalf("status = %s (%s), want success", sol.Status, sol.Error)
	}
	if len(sol.Routes) != 1 {
		t.Fatalf("got %d routes, want 1", len(sol.Routes))
	}
	if len(sol.UnassignedStopIDs) != 0 {
		t.Fatalf("unexpected unassigned stops: %v", sol.UnassignedStopIDs)
	}
	r := sol.Routes[0]
	if r.StopsCount != 2 {
		t.Fatalf("route has %d stops, want 2", r.StopsCount)
	}
	if r.TotalDistanceKm != 33 {
		t.Fatalf("total distance = %.2f, want 33", r.TotalDistanceKm)
	}
	if r.TotalLoadKg != 125 || r.TotalLoadM3 != 2.5 {
		t.Fatalf("bad loads: %.1f kg, %.2f m3", r.TotalLoadKg, r.TotalLoadM3)
	}
	if first, last := r.Stops[0], r.Stops[len(r.Stops)-1]; first.LocationIndex != 0 || last.LocationIndex != 0 {
		t.Fatal("route must start and end at the depot")
	}
}

// A stop that exceeds every vehicle's capacity cannot be placed anywhere:
// the solve fails with the stop reported unassigned, never overloaded.
func TestSolveOverweightStopFails(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "v1", CapacityKg: 10, CapacityM3: 5, MaxStops: 5, IsAvailable: true}}
	stops := []model.Stop{{ID: "heavy", WeightKg: 500, VolumeM3: 1}}
	dist := [][]float64{{0, 5}, {5, 0}}
	p, err := NewProblem(vehicles, stops, dist, dist, 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}

	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusFailed {
		t.Fatalf("status = %s, want failed", sol.Status)
	}
	if len(sol.Routes) != 0 {
		t.Fatalf("failed solve must return zero routes, got %d", len(sol.Routes))
	}
	if len(sol.UnassignedStopIDs) != 1 || sol.UnassignedStopIDs[0] != "heavy" {
		t.Fatalf("unassigned = %v, want [heavy]", sol.UnassignedStopIDs)
	}
}

// Cold-chain stops may only ride on refrigerated vehicles, regardless of
// which assignment would be cheaper.
func TestSolveColdChainHardConstraint(t *testing.T) {
	vehicles := []model.Vehicle{
		{ID: "plain", CapacityKg: 1000, CapacityM3: 10, MaxStops: 10, IsAvailable: true},
		{ID: "fridge", CapacityKg: 1000, CapacityM3: 10, MaxStops: 10, HasRefrigeration: true, IsAvailable: true},
	}
	stops := []model.Stop{
		{ID: "cold", WeightKg: 10, VolumeM3: 0.5, RequiresColdChain: true},
		{ID: "warm", WeightKg: 10, VolumeM3: 0.5},
	}
	dist := [][]float64{{0, 4, 6}, {4, 0, 3}, {6, 3, 0}}

	for seed := int64(1); seed <= 5; seed++ {
		p, err := NewProblem(vehicles, stops, dist, dist, 0)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}
		opts := testOptions()
		opts.Seed = seed
		sol, _ := SolveCVRP(p, opts)
		if sol.Status != model.StatusSuccess {
			t.Fatalf("seed %d: status = %s (%s)", seed, sol.Status, sol.Error)
		}
		for _, r := range sol.Routes {
			for _, rs := range r.Stops {
				if rs.StopID == "cold" && r.VehicleID != "fridge" {
					t.Fatalf("seed %d: cold-chain stop routed on %s", seed, r.VehicleID)
				}
			}
		}
	}
}

// With fleet capacity below total demand, the solver must drop stops rather
// than overload, and assigned + unassigned must partition the stop set.
func TestSolveCapacityPartition(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "v1", CapacityKg: 100, CapacityM3: 10, MaxStops: 10, IsAvailable: true}}
	stops := []model.Stop{
		{ID: "a", WeightKg: 60, VolumeM3: 1, Priority: 1},
		{ID: "b", WeightKg: 60, VolumeM3: 1, Priority: 2},
		{ID: "c", WeightKg: 30, VolumeM3: 1, Priority: 3},
	}
	dist := [][]float64{
		{0, 5, 6, 7},
		{5, 0, 2, 3},
		{6, 2, 0, 2},
		{7, 3, 2, 0},
	}
	p, err := NewProblem(vehicles, stops, dist, dist, 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}

	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusSuccess {
		t.Fatalf("status = %s (%s)", sol.Status, sol.Error)
	}
	if len(sol.UnassignedStopIDs) == 0 {
		t.Fatal("expected at least one dropped stop with insufficient capacity")
	}

	seen := map[string]int{}
	for _, r := range sol.Routes {
		var load float64
		for _, rs := range r.Stops {
			if rs.StopID == "" {
				continue
			}
			seen[rs.StopID]++
			load += stopByID(stops, rs.StopID).WeightKg
		}
		if load > 100 {
			t.Fatalf("route %s overloaded: %.1f kg", r.VehicleID, load)
		}
	}
	for _, id := range sol.UnassignedStopIDs {
		seen[id]++
	}
	if len(seen) != len(stops) {
		t.Fatalf("partition broken: saw %d of %d stops", len(seen), len(stops))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("stop %s appears %d times", id, n)
		}
	}
}

// Unavailable vehicles must never receive stops; with no usable vehicle at
// all the solve fails cleanly.
func TestSolveNoUsableVehicles(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "v1", CapacityKg: 100, CapacityM3: 10, MaxStops: 5, IsAvailable: false}}
	stops := []model.Stop{{ID: "s1", WeightKg: 1, VolumeM3: 0.1}}
	dist := [][]float64{{0, 5}, {5, 0}}
	p, err := NewProblem(vehicles, stops, dist, dist, 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusFailed {
		t.Fatalf("status = %s, want failed", sol.Status)
	}
	if len(sol.UnassignedStopIDs) != 1 {
		t.Fatalf("all stops must be unassigned, got %v", sol.UnassignedStopIDs)
	}
}

// Repeated solves with the same seed and budget must agree on cost.
func TestSolveDeterministicCost(t *testing.T) {
	vehicles := []model.Vehicle{
		{ID: "v1", CapacityKg: 300, CapacityM3: 10, MaxStops: 10, IsAvailable: true},
		{ID: "v2", CapacityKg: 300, CapacityM3: 10, MaxStops: 10, IsAvailable: true},
	}
	stops := []model.Stop{
		{ID: "a", WeightKg: 40, VolumeM3: 1},
		{ID: "b", WeightKg: 50, VolumeM3: 1},
		{ID: "c", WeightKg: 60, VolumeM3: 1},
		{ID: "d", WeightKg: 70, VolumeM3: 1},
	}
	dist := [][]float64{
		{0, 3, 8, 4, 9},
		{3, 0, 5, 2, 7},
		{8, 5, 0, 6, 2},
		{4, 2, 6, 0, 5},
		{9, 7, 2, 5, 0},
	}

	var first float64
	for i := 0; i < 3; i++ {
		p, err := NewProblem(vehicles, stops, dist, dist, 0)
		if err != nil {
			t.Fatalf("NewProblem: %v", err)
		}
		opts := testOptions()
		// generous budget so the iteration limit, not the clock, ends the search
		opts.TimeBudget = 2 * time.Second
		opts.IterationLimit = 100
		sol, _ := SolveCVRP(p, opts)
		if sol.Status != model.StatusSuccess {
			t.Fatalf("status = %s (%s)", sol.Status, sol.Error)
		}
		if i == 0 {
			first = sol.TotalDistanceKm
		} else if sol.TotalDistanceKm != first {
			t.Fatalf("run %d distance %.3f differs from first %.3f", i, sol.TotalDistanceKm, first)
		}
	}
}

// Every successful solve must survive the independent validator.
func TestSolvePassesValidator(t *testing.T) {
	vehicles := []model.Vehicle{
		{ID: "v1", CapacityKg: 250, CapacityM3: 8, MaxStops: 4, HasRefrigeration: true, IsAvailable: true},
		{ID: "v2", CapacityKg: 400, CapacityM3: 12, MaxStops: 6, IsAvailable: true},
	}
	stops := []model.Stop{
		{ID: "a", WeightKg: 40, VolumeM3: 1, Priority: 1, RequiresColdChain: true, ServiceTimeMinutes: 10},
		{ID: "b", WeightKg: 90, VolumeM3: 2, Priority: 2, ServiceTimeMinutes: 5},
		{ID: "c", WeightKg: 120, VolumeM3: 3, Priority: 3, ServiceTimeMinutes: 15},
		{ID: "d", WeightKg: 60, VolumeM3: 1.5, Priority: 2, ServiceTimeMinutes: 10},
		{ID: "e", WeightKg: 55, VolumeM3: 1, Priority: 1, RequiresColdChain: true, ServiceTimeMinutes: 5},
	}
	dist := [][]float64{
		{0, 7, 12, 5, 9, 14},
		{7, 0, 6, 4, 8, 10},
		{12, 6, 0, 9, 4, 6},
		{5, 4, 9, 0, 7, 12},
		{9, 8, 4, 7, 0, 5},
		{14, 10, 6, 12, 5, 0},
	}
	p, err := NewProblem(vehicles, stops, dist, scaleMatrix(dist, 1.5), 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusSuccess {
		t.Fatalf("status = %s (%s)", sol.Status, sol.Error)
	}

	res := validate.Solution(sol, vehicles, stops, validate.DefaultPolicy())
	if !res.IsValid {
		t.Fatalf("validator rejected solver output: %v", res.Errors)
	}
}

// A declared capacity of zero is a real cap of zero, not "unlimited": the
// vehicle can never carry a stop with positive demand.
func TestSolveZeroCapacityVehicleCarriesNothing(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "empty", CapacityKg: 0, CapacityM3: 5, MaxStops: 5, IsAvailable: true}}
	stops := []model.Stop{{ID: "s1", WeightKg: 50, VolumeM3: 1}}
	dist := [][]float64{{0, 5}, {5, 0}}
	p, err := NewProblem(vehicles, stops, dist, dist, 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}

	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusFailed {
		t.Fatalf("status = %s, want failed", sol.Status)
	}
	if len(sol.Routes) != 0 {
		t.Fatalf("zero-capacity vehicle must receive no route, got %d", len(sol.Routes))
	}
	if len(sol.UnassignedStopIDs) != 1 || sol.UnassignedStopIDs[0] != "s1" {
		t.Fatalf("unassigned = %v, want [s1]", sol.UnassignedStopIDs)
	}

	// with a usable vehicle alongside, everything lands there instead
	vehicles = append(vehicles, model.Vehicle{
		ID: "real", CapacityKg: 100, CapacityM3: 5, MaxStops: 5, IsAvailable: true,
	})
	p, err = NewProblem(vehicles, stops, dist, dist, 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	sol, _ = SolveCVRP(p, testOptions())
	if sol.Status != model.StatusSuccess {
		t.Fatalf("status = %s (%s), want success", sol.Status, sol.Error)
	}
	for _, r := range sol.Routes {
		if r.VehicleID == "empty" && r.StopsCount > 0 {
			t.Fatal("zero-capacity vehicle was loaded")
		}
		if r.VehicleID == "real" && r.TotalLoadKg != 50 {
			t.Fatalf("real vehicle load = %.1f kg, want 50", r.TotalLoadKg)
		}
	}
}

// An undeclared stop limit falls back to the fleet default of 20, never to
// an unlimited route.
func TestSolveDefaultMaxStopsApplies(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "v1", CapacityKg: 1000, CapacityM3: 100, IsAvailable: true}}
	const nStops = 21
	stops := make([]model.Stop, nStops)
	for i := range stops {
		stops[i] = model.Stop{ID: fmt.Sprintf("s%d", i+1), WeightKg: 1, VolumeM3: 0.1}
	}
	// locations on a line, one km apart
	n := nStops + 1
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = math.Abs(float64(i - j))
		}
	}
	p, err := NewProblem(vehicles, stops, dist, dist, 0)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}

	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusSuccess {
		t.Fatalf("status = %s (%s)", sol.Status, sol.Error)
	}
	if len(sol.UnassignedStopIDs) != 1 {
		t.Fatalf("expected exactly one stop over the default limit, got %v", sol.UnassignedStopIDs)
	}
	if sol.Routes[0].StopsCount != model.DefaultMaxStops {
		t.Fatalf("route carries %d stops, want %d", sol.Routes[0].StopsCount, model.DefaultMaxStops)
	}
}

// A non-zero depot index must round-trip cleanly through solve and
// validation.
func TestSolveNonZeroDepot(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "v1", CapacityKg: 500, CapacityM3: 10, MaxStops: 5, IsAvailable: true}}
	stops := []model.Stop{
		{ID: "s1", WeightKg: 20, VolumeM3: 1},
		{ID: "s2", WeightKg: 30, VolumeM3: 1},
	}
	// depot is location 1; stops sit at locations 0 and 2
	dist := [][]float64{{0, 10, 8}, {10, 0, 15}, {8, 15, 0}}
	p, err := NewProblem(vehicles, stops, dist, dist, 1)
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}

	sol, _ := SolveCVRP(p, testOptions())
	if sol.Status != model.StatusSuccess {
		t.Fatalf("status = %s (%s)", sol.Status, sol.Error)
	}
	r := sol.Routes[0]
	if first, last := r.Stops[0], r.Stops[len(r.Stops)-1]; first.LocationIndex != 1 || last.LocationIndex != 1 {
		t.Fatalf("route endpoints %d/%d, want depot location 1", first.LocationIndex, last.LocationIndex)
	}

	pol := validate.DefaultPolicy()
	pol.DepotIndex = 1
	res := validate.Solution(sol, vehicles, stops, pol)
	if !res.IsValid {
		t.Fatalf("validator rejected non-zero-depot solution: %v", res.Errors)
	}
}

func TestDefaultDropPenalty(t *testing.T) {
	if DefaultDropPenalty(1) <= DefaultDropPenalty(2) {
		t.Fatal("priority 1 must cost more to drop than priority 2")
	}
	if DefaultDropPenalty(0) != DefaultDropPenalty(1) {
		t.Fatal("non-positive priorities clamp to 1")
	}
}

func stopByID(stops []model.Stop, id string) model.Stop {
	for _, s := range stops {
		if s.ID == id {
			return s
		}
	}
	return model.Stop{}
}
