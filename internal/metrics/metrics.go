package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the engine
	Registry = prometheus.NewRegistry()
	// Solves counts solver runs by mode (cvrp, tsp) and outcome
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solves_total", Help: "Solver runs by mode and status."},
		[]string{"mode", "status"},
	)
	// SolveDuration records wall-clock solve time in seconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Solver run duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}},
		[]string{"mode"},
	)
	// StopsDropped counts stops left unassigned across all solves
	StopsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "stops_dropped_total", Help: "Stops the solver could not place."},
	)
	// RouteDistance tracks produced per-route distances in km
	RouteDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_distance_km", Help: "Distance of produced routes in km.", Buckets: []float64{5, 10, 25, 50, 100, 200, 300, 500}},
	)
)

// RegisterDefault registers collectors to the engine registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(StopsDropped)
		Registry.MustRegister(RouteDistance)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
