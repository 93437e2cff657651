package joblog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Entry is one recorded job run.
type Entry struct {
	ID         int64      `json:"id"`
	JobName    string     `json:"job_name"`
	Market     string     `json:"market"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Repository records job runs in Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Start records a new running job and returns its id.
func (r *Repository) Start(ctx context.Context, jobName, market string) (int64, error) {
	query := `
		INSERT INTO ops.job_logs (job_name, market, status, started_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRow(ctx, query, jobName, market, StatusRunning).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert job log: %w", err)
	}
	return id, nil
}

// Finish marks a run as success or failed with an optional message.
func (r *Repository) Finish(ctx context.Context, id int64, status, message string) error {
	query := `
		UPDATE ops.job_logs
		SET status = $2, message = $3, finished_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id, status, message); err != nil {
		return fmt.Errorf("update job log: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_name, market, status, COALESCE(message, ''), started_at, finished_at
		FROM ops.job_logs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.JobName, &e.Market, &e.Status, &e.Message, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan job log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Latest returns the most recent run of a job for a market, nil when the
// job never ran.
func (r *Repository) Latest(ctx context.Context, jobName, market string) (*Entry, error) {
	query := `
		SELECT id, job_name, market, status, COALESCE(message, ''), started_at, finished_at
		FROM ops.job_logs
		WHERE job_name = $1 AND market = $2
		ORDER BY started_at DESC
		LIMIT 1
	`

	var e Entry
	err := r.db.QueryRow(ctx, query, jobName, market).
		Scan(&e.ID, &e.JobName, &e.Market, &e.Status, &e.Message, &e.StartedAt, &e.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest job log: %w", err)
	}
	return &e, nil
}
