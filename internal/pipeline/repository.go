package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository handles database operations for plan run tracking
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new plan run repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a new plan run record. The caller assigns the ID.
func (r *Repository) CreateRun(ctx context.Context, run *PlanRun) error {
	query := `
		INSERT INTO plan_runs (
			id, fingerprint, status, total_skus, processed_skus,
			fallback_points, cache_hit, started_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.ID, run.Fingerprint, run.Status, run.TotalSKUs, run.ProcessedSKUs,
		run.FallbackPoints, run.CacheHit, run.StartedAt, run.CompletedAt, run.ErrorMessage,
	)

	return err
}

// UpdateRun updates the progress and outcome of an existing run
func (r *Repository) UpdateRun(ctx context.Context, run *PlanRun) error {
	query := `
		UPDATE plan_runs
		SET status = $1, total_skus = $2, processed_skus = $3,
		    fallback_points = $4, completed_at = $5, error_message = $6
		WHERE id = $7
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.TotalSKUs, run.ProcessedSKUs,
		run.FallbackPoints, run.CompletedAt, run.ErrorMessage, run.ID,
	)

	return err
}

// GetRun retrieves a plan run by ID. It returns nil when no run matches.
func (r *Repository) GetRun(ctx context.Context, id string) (*PlanRun, error) {
	query := `
		SELECT id, fingerprint, status, total_skus, processed_skus,
		       fallback_points, cache_hit, started_at, completed_at, error_message
		FROM plan_runs
		WHERE id = $1
	`

	run := &PlanRun{}
	err := r.db.GetContext(ctx, run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListRecentRuns returns runs started at or after since, newest first
func (r *Repository) ListRecentRuns(ctx context.Context, since time.Time, limit int) ([]*PlanRun, error) {
	query := `
		SELECT id, fingerprint, status, total_skus, processed_skus,
		       fallback_points, cache_hit, started_at, completed_at, error_message
		FROM plan_runs
		WHERE started_at >= $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	var runs []*PlanRun
	if err := r.db.SelectContext(ctx, &runs, query, since, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRunStats aggregates run outcomes since the given time
func (r *Repository) GetRunStats(ctx context.Context, since time.Time) (*RunStats, error) {
	query := `
		SELECT
			COUNT(*) AS runs,
			COUNT(CASE WHEN status = $2 THEN 1 END) AS failed,
			COUNT(CASE WHEN cache_hit THEN 1 END) AS cache_hits,
			COALESCE(SUM(processed_skus), 0) AS skus_processed,
			MAX(completed_at) AS last_completed_at
		FROM plan_runs
		WHERE started_at >= $1
	`

	stats := &RunStats{}
	err := r.db.QueryRowContext(ctx, query, since, StatusFailed).Scan(
		&stats.Runs,
		&stats.Failed,
		&stats.CacheHits,
		&stats.SKUsProcessed,
		&stats.LastCompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &RunStats{}, nil
	}

	return stats, err
}

// RunStats summarises plan runs over a time window
type RunStats struct {
	Runs            int64      `json:"runs"`
	Failed          int64      `json:"failed"`
	CacheHits       int64      `json:"cache_hits"`
	SKUsProcessed   int64      `json:"skus_processed"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}
