package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"medroute/internal/buildinfo"
	"medroute/internal/config"
	"medroute/internal/matrix"
	"medroute/internal/metrics"
	"medroute/internal/model"
	"medroute/internal/opt"
	"medroute/internal/store"
	"medroute/internal/validate"
)

// problemInput is the JSON document the planner services hand over. When the
// matrices are omitted they are computed from coordinates by the configured
// matrix provider.
type problemInput struct {
	Vehicles              []model.Vehicle `json:"vehicles"`
	Stops                 []model.Stop    `json:"stops"`
	Depot                 *model.GeoPoint `json:"depot,omitempty"`
	DepotIndex            int             `json:"depot_index"`
	DistanceMatrixKm      [][]float64     `json:"distance_matrix_km,omitempty"`
	DurationMatrixMinutes [][]float64     `json:"duration_matrix_minutes,omitempty"`
}

func main() {
	inputPath := flag.String("input", "", "path to problem JSON (required)")
	configPath := flag.String("config", "", "path to YAML config")
	tspMode := flag.Bool("tsp", false, "sequence a single tour instead of solving the fleet CVRP")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("medroute", buildinfo.String())
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	metrics.RegisterDefault()

	if *inputPath == "" {
		log.Fatal("-input is required")
	}
	data, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	var in problemInput
	if err := json.Unmarshal(data, &in); err != nil {
		log.Fatalf("parse input: %v", err)
	}

	ctx := context.Background()
	if in.DistanceMatrixKm == nil {
		in.DistanceMatrixKm, in.DurationMatrixMinutes = buildMatrices(ctx, cfg, in)
	}

	if *tspMode {
		start := time.Now()
		res := opt.SolveTSP(in.DistanceMatrixKm, in.DurationMatrixMinutes, in.DepotIndex, true)
		metrics.Solves.WithLabelValues("tsp", model.StatusSuccess).Inc()
		metrics.SolveDuration.WithLabelValues("tsp").Observe(time.Since(start).Seconds())
		printJSON(res)
		return
	}

	problem, err := opt.NewProblem(in.Vehicles, in.Stops, in.DistanceMatrixKm, in.DurationMatrixMinutes, in.DepotIndex)
	if err != nil {
		log.Fatalf("invalid problem: %v", err)
	}

	opts := opt.Options{
		TimeBudget:     time.Duration(cfg.Solver.TimeBudgetMs) * time.Millisecond,
		Seed:           cfg.Solver.Seed,
		IterationLimit: cfg.Solver.IterationLimit,
	}
	if base := cfg.Solver.BaseDropPenalty; base > 0 {
		opts.DropPenalty = func(priority int) int64 {
			if priority < 1 {
				priority = 1
			}
			return base / int64(priority)
		}
	}

	runID := uuid.NewString()
	started := time.Now()
	sol, met := opt.SolveCVRP(problem, opts)
	opt.RecordMetrics(runID, met)

	metrics.Solves.WithLabelValues("cvrp", sol.Status).Inc()
	metrics.SolveDuration.WithLabelValues("cvrp").Observe(time.Since(started).Seconds())
	metrics.StopsDropped.Add(float64(len(sol.UnassignedStopIDs)))
	for _, r := range sol.Routes {
		metrics.RouteDistance.Observe(r.TotalDistanceKm)
	}

	pol := validate.DefaultPolicy()
	pol.DepotIndex = in.DepotIndex
	if cfg.Validator.MaxRouteDistanceKm > 0 {
		pol.MaxRouteDistanceKm = cfg.Validator.MaxRouteDistanceKm
	}
	if cfg.Validator.MaxRouteTimeMinutes > 0 {
		pol.MaxRouteTimeMinutes = cfg.Validator.MaxRouteTimeMinutes
	}
	check := validate.Solution(sol, in.Vehicles, in.Stops, pol)
	if !check.IsValid {
		log.Printf("validation errors: %v", check.Errors)
	}
	for _, w := range check.Warnings {
		log.Printf("validation warning: %s", w)
	}

	saveRun(ctx, cfg, runID, started, sol, met)
	log.Printf("run %s: %s, %d routes, %d unassigned, %.2f km in %dms",
		runID, sol.Status, len(sol.Routes), len(sol.UnassignedStopIDs), sol.TotalDistanceKm, sol.ComputationMs)
	printJSON(sol)
}

func buildMatrices(ctx context.Context, cfg config.Config, in problemInput) ([][]float64, [][]float64) {
	if in.Depot == nil {
		log.Fatal("input needs either matrices or a depot location")
	}
	points := make([]model.GeoPoint, 0, len(in.Stops)+1)
	points = append(points, *in.Depot)
	for _, s := range in.Stops {
		points = append(points, s.Location)
	}

	var provider matrix.Provider = matrix.Haversine{SpeedKmh: cfg.Matrix.AvgSpeedKmh}
	if cfg.Matrix.Mode == "remote" && cfg.Matrix.BaseURL != "" {
		remote := matrix.NewRemote(cfg.Matrix.BaseURL, os.Getenv(cfg.Matrix.APIKeyEnv), cfg.Matrix.RequestsPerSec)
		provider = remote
		if cfg.Matrix.RedisURL != "" {
			cached, err := matrix.NewCached(remote, cfg.Matrix.RedisURL, time.Duration(cfg.Matrix.CacheTTLMinutes)*time.Minute)
			if err != nil {
				log.Printf("matrix cache disabled: %v", err)
			} else {
				provider = cached
			}
		}
	}

	m, err := provider.Matrix(ctx, points)
	if err != nil {
		log.Printf("matrix provider failed (%v); using geometric fallback", err)
		m, _ = matrix.Haversine{SpeedKmh: cfg.Matrix.AvgSpeedKmh}.Matrix(ctx, points)
	}
	return m.DistanceKm, m.DurationMinutes
}

func saveRun(ctx context.Context, cfg config.Config, runID string, started time.Time, sol model.Solution, met opt.Metrics) {
	var st store.Store = store.NewMemory()
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN != "" {
		pg, err := store.NewPostgres(cfg.Store.DSN)
		if err != nil {
			log.Printf("run store unavailable: %v", err)
			return
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Printf("run store schema: %v", err)
			return
		}
		st = pg
	}

	snapshot, _ := json.Marshal(met)
	assigned := 0
	for _, r := range sol.Routes {
		assigned += r.StopsCount
	}
	rec := store.RunRecord{
		ID:               runID,
		Mode:             "cvrp",
		Status:           sol.Status,
		StartedAt:        started,
		RoutesCount:      len(sol.Routes),
		AssignedStops:    assigned,
		UnassignedStops:  len(sol.UnassignedStopIDs),
		TotalDistanceKm:  sol.TotalDistanceKm,
		TotalTimeMinutes: sol.TotalTimeMinutes,
		ComputationMs:    sol.ComputationMs,
		EngineMetrics:    snapshot,
	}
	if err := st.SaveRun(ctx, rec); err != nil {
		log.Printf("save run: %v", err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
