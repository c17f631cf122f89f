// Package validate independently re-checks solver output against every
// business rule before callers trust it, guarding against regressions and
// manually edited routes.
package validate

import (
	"fmt"

	"medroute/internal/model"
)

// Policy bounds a single route and sets the proximity at which a check
// warns instead of erroring.
type Policy struct {
	MaxRouteDistanceKm  float64
	MaxRouteTimeMinutes float64
	LoadWarnFraction    float64 // fraction of a capacity that triggers a warning
	RouteWarnFraction   float64 // fraction of distance/time/stop limits that triggers a warning
	DepotIndex          int     // location index every route must start and end at
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRouteDistanceKm:  300,
		MaxRouteTimeMinutes: 600,
		LoadWarnFraction:    0.95,
		RouteWarnFraction:   0.90,
	}
}

// Solution verifies every route of sol against the fleet, the original stop
// set, and the policy. All findings are collected; IsValid is true only when
// no hard error was found.
func Solution(sol model.Solution, vehicles []model.Vehicle, stops []model.Stop, pol Policy) model.ValidationResult {
	res := model.ValidationResult{Errors: []string{}, Warnings: []string{}}

	if sol.Status == model.StatusFailed {
		res.Errors = append(res.Errors, "solver reported failure")
		return res
	}
	if len(sol.Routes) == 0 {
		res.Errors = append(res.Errors, "no routes were generated")
	}

	vehicleByID := make(map[string]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		vehicleByID[v.ID] = v
	}
	stopByID := make(map[string]model.Stop, len(stops))
	for _, s := range stops {
		stopByID[s.ID] = s
	}

	for i, route := range sol.Routes {
		checkRoute(&res, route, i+1, vehicleByID, stopByID, pol)
	}

	if n := len(sol.UnassignedStopIDs); n > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d stop(s) left unassigned; capacity or constraints may be insufficient", n))
	}

	// a stop id may appear in at most one route, and every assigned id
	// must exist in the original stop set
	seen := map[string]bool{}
	for _, route := range sol.Routes {
		for _, rs := range route.Stops {
			if rs.StopID == "" {
				continue
			}
			if seen[rs.StopID] {
				res.Errors = append(res.Errors, fmt.Sprintf("stop %s assigned to multiple routes", rs.StopID))
			}
			seen[rs.StopID] = true
			if _, ok := stopByID[rs.StopID]; !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("route contains unknown stop %s", rs.StopID))
			}
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func checkRoute(res *model.ValidationResult, route model.Route, num int,
	vehicleByID map[string]model.Vehicle, stopByID map[string]model.Stop, pol Policy) {

	v, ok := vehicleByID[route.VehicleID]
	if !ok {
		res.Errors = append(res.Errors, fmt.Sprintf("route %d: vehicle %s not found", num, route.VehicleID))
		return
	}

	if route.TotalLoadKg > v.CapacityKg {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"route %d: weight overload: %.2f kg loaded, capacity %.2f kg", num, route.TotalLoadKg, v.CapacityKg))
	} else if v.CapacityKg > 0 && route.TotalLoadKg > v.CapacityKg*pol.LoadWarnFraction {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"route %d: weight at %.1f%% of capacity", num, route.TotalLoadKg/v.CapacityKg*100))
	}

	if route.TotalLoadM3 > v.CapacityM3 {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"route %d: volume overload: %.2f m3 loaded, capacity %.2f m3", num, route.TotalLoadM3, v.CapacityM3))
	} else if v.CapacityM3 > 0 && route.TotalLoadM3 > v.CapacityM3*pol.LoadWarnFraction {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"route %d: volume at %.1f%% of capacity", num, route.TotalLoadM3/v.CapacityM3*100))
	}

	if route.TotalDistanceKm > pol.MaxRouteDistanceKm {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"route %d: distance %.2f km exceeds maximum %.2f km", num, route.TotalDistanceKm, pol.MaxRouteDistanceKm))
	} else if route.TotalDistanceKm > pol.MaxRouteDistanceKm*pol.RouteWarnFraction {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"route %d: distance at %.1f%% of maximum", num, route.TotalDistanceKm/pol.MaxRouteDistanceKm*100))
	}

	if route.TotalTimeMinutes > pol.MaxRouteTimeMinutes {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"route %d: duration %.0f min exceeds maximum %.0f min", num, route.TotalTimeMinutes, pol.MaxRouteTimeMinutes))
	} else if route.TotalTimeMinutes > pol.MaxRouteTimeMinutes*pol.RouteWarnFraction {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"route %d: duration at %.1f%% of maximum", num, route.TotalTimeMinutes/pol.MaxRouteTimeMinutes*100))
	}

	deliveries := 0
	for _, rs := range route.Stops {
		if rs.StopID == "" {
			continue
		}
		deliveries++
		if s, ok := stopByID[rs.StopID]; ok && s.RequiresColdChain && !v.HasRefrigeration {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"route %d: cold-chain stop %s on vehicle without refrigeration", num, rs.StopID))
		}
	}

	if limit := v.MaxStopsLimit(); deliveries > limit {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"route %d: %d stops exceed vehicle maximum %d", num, deliveries, limit))
	} else if float64(deliveries) > float64(limit)*pol.RouteWarnFraction {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"route %d: %d stops, close to maximum %d", num, deliveries, limit))
	}

	if len(route.Stops) < 2 {
		res.Errors = append(res.Errors, fmt.Sprintf("route %d: fewer than 2 sequence entries", num))
	} else {
		if route.Stops[0].LocationIndex != pol.DepotIndex {
			res.Errors = append(res.Errors, fmt.Sprintf("route %d: does not start at depot", num))
		}
		if route.Stops[len(route.Stops)-1].LocationIndex != pol.DepotIndex {
			res.Errors = append(res.Errors, fmt.Sprintf("route %d: does not end at depot", num))
		}
	}

	for i, rs := range route.Stops {
		if rs.SequenceOrder != i {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"route %d: bad sequence at position %d (expected %d, got %d)", num, i, i, rs.SequenceOrder))
		}
	}
}
