package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates the runs table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS solver_runs (
        id               uuid PRIMARY KEY,
        mode             text NOT NULL,
        status           text NOT NULL,
        started_at       timestamptz NOT NULL,
        routes_count     int NOT NULL,
        assigned_stops   int NOT NULL,
        unassigned_stops int NOT NULL,
        total_distance_km   double precision NOT NULL,
        total_time_minutes  double precision NOT NULL,
        computation_ms   bigint NOT NULL,
        engine_metrics   jsonb
    )`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) SaveRun(ctx context.Context, rec RunRecord) error {
	metrics := rec.EngineMetrics
	if len(metrics) == 0 {
		metrics = []byte("null")
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO solver_runs
        (id, mode, status, started_at, routes_count, assigned_stops, unassigned_stops,
         total_distance_km, total_time_minutes, computation_ms, engine_metrics)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rec.ID, rec.Mode, rec.Status, rec.StartedAt, rec.RoutesCount, rec.AssignedStops,
		rec.UnassignedStops, rec.TotalDistanceKm, rec.TotalTimeMinutes, rec.ComputationMs, metrics)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id::text, mode, status, started_at, routes_count,
        assigned_stops, unassigned_stops, total_distance_km, total_time_minutes,
        computation_ms, engine_metrics
        FROM solver_runs WHERE id=$1`, id)
	var rec RunRecord
	err := row.Scan(&rec.ID, &rec.Mode, &rec.Status, &rec.StartedAt, &rec.RoutesCount,
		&rec.AssignedStops, &rec.UnassignedStops, &rec.TotalDistanceKm, &rec.TotalTimeMinutes,
		&rec.ComputationMs, &rec.EngineMetrics)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, mode, status, started_at, routes_count,
        assigned_stops, unassigned_stops, total_distance_km, total_time_minutes,
        computation_ms, engine_metrics
        FROM solver_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []RunRecord{}
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Status, &rec.StartedAt, &rec.RoutesCount,
			&rec.AssignedStops, &rec.UnassignedStops, &rec.TotalDistanceKm, &rec.TotalTimeMinutes,
			&rec.ComputationMs, &rec.EngineMetrics); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
