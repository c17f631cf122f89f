package opt

import "medroute/internal/model"

// extract turns the best search state into the caller-facing Solution.
// Routes run depot -> stops -> depot; arrival offsets accumulate travel and
// service time from a zero start at the depot.
func (e *engine) extract(s *state) model.Solution {
	depot := e.p.Depot()
	sol := model.Solution{Status: model.StatusSuccess, Routes: []model.Route{}}

	assignedCount := 0
	for _, pl := range s.plans {
		if len(pl.order) == 0 {
			continue
		}
		assignedCount += len(pl.order)
		v := e.p.Vehicle(pl.vehicle)

		route := model.Route{VehicleID: v.ID, StopsCount: len(pl.order)}
		route.Stops = append(route.Stops, model.RouteStop{LocationIndex: depot})

		var distKm, timeMin, loadKg, loadM3 float64
		prev := depot
		for seq, loc := range pl.order {
			stop := e.p.StopAt(loc)
			leg := e.p.DistKm(prev, loc)
			distKm += leg
			timeMin += e.p.DurMin(prev, loc)
			arrival := timeMin
			timeMin += stop.ServiceTimeMinutes
			loadKg += stop.WeightKg
			loadM3 += stop.VolumeM3
			route.Stops = append(route.Stops, model.RouteStop{
				StopID:               stop.ID,
				LocationIndex:        loc,
				SequenceOrder:        seq + 1,
				DistanceFromPrevKm:   leg,
				ArrivalOffsetMinutes: arrival,
				CumulativeLoadKg:     loadKg,
				CumulativeLoadM3:     loadM3,
			})
			prev = loc
		}
		leg := e.p.DistKm(prev, depot)
		distKm += leg
		timeMin += e.p.DurMin(prev, depot)
		route.Stops = append(route.Stops, model.RouteStop{
			LocationIndex:        depot,
			SequenceOrder:        len(pl.order) + 1,
			DistanceFromPrevKm:   leg,
			ArrivalOffsetMinutes: timeMin,
		})

		route.TotalDistanceKm = distKm
		route.TotalTimeMinutes = timeMin
		route.TotalLoadKg = loadKg
		route.TotalLoadM3 = loadM3
		sol.Routes = append(sol.Routes, route)

		sol.TotalDistanceKm += distKm
		sol.TotalTimeMinutes += timeMin
		sol.TotalCost += distKm * v.CostPerKm
	}

	assigned := e.assignedSet(s)
	// unassigned ids in input order
	for i, stop := range e.p.Stops() {
		if !assigned[e.p.LocationOf(i)] {
			sol.UnassignedStopIDs = append(sol.UnassignedStopIDs, stop.ID)
		}
	}

	if assignedCount == 0 {
		return failedSolution(e.p, "no feasible assignment found")
	}
	sol.OptimizationScore = e.optimizationScore(sol)
	return sol
}

// failedSolution is the uniform shape for infeasible inputs and recovered
// solver faults: zero routes, every stop unassigned, the reason in Error.
func failedSolution(p *Problem, reason string) model.Solution {
	ids := make([]string, 0, p.NumStops())
	for _, s := range p.Stops() {
		ids = append(ids, s.ID)
	}
	return model.Solution{
		Status:            model.StatusFailed,
		Routes:            []model.Route{},
		UnassignedStopIDs: ids,
		Error:             reason,
	}
}

// optimizationScore grades a solution 0-100: coverage counts for half,
// capacity utilization for 30, distance balance across routes for 20.
func (e *engine) optimizationScore(sol model.Solution) float64 {
	if len(sol.Routes) == 0 || e.p.NumStops() == 0 {
		return 0
	}
	assigned := e.p.NumStops() - len(sol.UnassignedStopIDs)
	score := float64(assigned) / float64(e.p.NumStops()) * 50

	util := 0.0
	for _, r := range sol.Routes {
		for _, v := range e.p.Vehicles() {
			if v.ID != r.VehicleID {
				continue
			}
			u := 0.0
			if v.CapacityKg > 0 {
				u = r.TotalLoadKg / v.CapacityKg
			}
			if v.CapacityM3 > 0 && r.TotalLoadM3/v.CapacityM3 > u {
				u = r.TotalLoadM3 / v.CapacityM3
			}
			util += u
		}
	}
	score += util / float64(len(sol.Routes)) * 30

	if len(sol.Routes) > 1 {
		mean := sol.TotalDistanceKm / float64(len(sol.Routes))
		variance := 0.0
		for _, r := range sol.Routes {
			d := r.TotalDistanceKm - mean
			variance += d * d
		}
		variance /= float64(len(sol.Routes))
		balance := 20.0
		if mean > 0 {
			balance -= variance / mean * 10
		}
		if balance < 0 {
			balance = 0
		}
		score += balance
	} else {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}
