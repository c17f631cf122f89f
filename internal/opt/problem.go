package opt

import (
	"errors"
	"fmt"

	"medroute/internal/model"
)

var (
	ErrNoVehicles     = errors.New("vehicle list is empty")
	ErrNoStops        = errors.New("stop list is empty")
	ErrMatrixMismatch = errors.New("distance and duration matrices have different dimensions")
	ErrMatrixShape    = errors.New("matrix dimension must equal 1 + number of stops")
	ErrBadDepot       = errors.New("depot index out of range")
)

// Problem holds the validated, immutable inputs to one solve. It is built
// per request, consumed once, and holds no cross-request state.
type Problem struct {
	vehicles []model.Vehicle
	stops    []model.Stop
	distKm   [][]float64
	durMin   [][]float64
	depot    int
}

// NewProblem validates structural consistency and aggregates every violation
// into a single error so malformed input never reaches the search phase.
func NewProblem(vehicles []model.Vehicle, stops []model.Stop, distKm, durMin [][]float64, depot int) (*Problem, error) {
	var errs []error
	if len(vehicles) == 0 {
		errs = append(errs, ErrNoVehicles)
	}
	if len(stops) == 0 {
		errs = append(errs, ErrNoStops)
	}
	n := len(stops) + 1
	if err := checkSquare("distance matrix", distKm, n); err != nil {
		errs = append(errs, err)
	}
	if err := checkSquare("duration matrix", durMin, n); err != nil {
		errs = append(errs, err)
	}
	if len(distKm) != len(durMin) {
		errs = append(errs, fmt.Errorf("%w: %dx%d vs %dx%d", ErrMatrixMismatch,
			len(distKm), len(distKm), len(durMin), len(durMin)))
	}
	if depot < 0 || depot >= n {
		errs = append(errs, fmt.Errorf("%w: %d (locations: %d)", ErrBadDepot, depot, n))
	}
	for i, s := range stops {
		if s.WeightKg < 0 || s.VolumeM3 < 0 {
			errs = append(errs, fmt.Errorf("stop %q (index %d): negative demand", s.ID, i))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Problem{vehicles: vehicles, stops: stops, distKm: distKm, durMin: durMin, depot: depot}, nil
}

func checkSquare(name string, m [][]float64, want int) error {
	if len(m) != want {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrMatrixShape, name, len(m), want)
	}
	for i, row := range m {
		if len(row) != want {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrMatrixShape, name, i, len(row), want)
		}
	}
	return nil
}

func (p *Problem) NumVehicles() int  { return len(p.vehicles) }
func (p *Problem) NumStops() int     { return len(p.stops) }
func (p *Problem) NumLocations() int { return len(p.stops) + 1 }
func (p *Problem) Depot() int        { return p.depot }

func (p *Problem) Vehicle(i int) model.Vehicle { return p.vehicles[i] }
func (p *Problem) Vehicles() []model.Vehicle   { return p.vehicles }
func (p *Problem) Stops() []model.Stop         { return p.stops }

// StopAt maps a location index to its stop. Locations other than the depot
// correspond to stops in input order.
func (p *Problem) StopAt(loc int) model.Stop {
	if loc > p.depot {
		return p.stops[loc-1]
	}
	return p.stops[loc]
}

// LocationOf is the inverse of StopAt for a stop's input position.
func (p *Problem) LocationOf(stopIdx int) int {
	if stopIdx >= p.depot {
		return stopIdx + 1
	}
	return stopIdx
}

func (p *Problem) DistKm(from, to int) float64 { return p.distKm[from][to] }
func (p *Problem) DurMin(from, to int) float64 { return p.durMin[from][to] }
