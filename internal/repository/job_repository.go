package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/pkg/database"
)

// jobRepository implements JobRepository interface
type jobRepository struct {
	db *database.Postgres
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *database.Postgres) JobRepository {
	return &jobRepository{db: db}
}

// CreateRun inserts a new job run in the running state
func (r *jobRepository) CreateRun(ctx context.Context, run *domain.JobRun) error {
	query := `
		INSERT INTO job_runs (id, job_type, status, started_at, total_users,
		                      processed_users, successful_syncs, failed_syncs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = domain.JobStatusRunning
	}
	now := time.Now()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		run.ID,
		run.JobType,
		run.Status,
		run.StartedAt,
		run.TotalUsers,
		run.ProcessedUsers,
		run.SuccessfulSyncs,
		run.FailedSyncs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job run: %w", err)
	}

	return nil
}

func scanJobRun(row interface{ Scan(dest ...any) error }) (*domain.JobRun, error) {
	run := &domain.JobRun{}
	var (
		completedAt  sql.NullTime
		errorMessage sql.NullString
	)

	err := row.Scan(
		&run.ID,
		&run.JobType,
		&run.Status,
		&run.StartedAt,
		&completedAt,
		&run.TotalUsers,
		&run.ProcessedUsers,
		&run.SuccessfulSyncs,
		&run.FailedSyncs,
		&errorMessage,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}

	return run, nil
}

const jobRunColumns = `
	id, job_type, status, started_at, completed_at,
	total_users, processed_users, successful_syncs, failed_syncs,
	error_message, created_at
`

// GetRun retrieves a job run by ID
func (r *jobRepository) GetRun(ctx context.Context, id string) (*domain.JobRun, error) {
	query := `SELECT ` + jobRunColumns + ` FROM job_runs WHERE id = $1`

	run, err := scanJobRun(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job run %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job run: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent job runs
func (r *jobRepository) ListRuns(ctx context.Context, limit int) ([]*domain.JobRun, error) {
	query := `
		SELECT ` + jobRunColumns + `
		FROM job_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.JobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job runs: %w", err)
	}

	return runs, nil
}

// SetTotalUsers records the enumerated user count at run start
func (r *jobRepository) SetTotalUsers(ctx context.Context, id string, total int) error {
	query := `UPDATE job_runs SET total_users = $2 WHERE id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, id, total); err != nil {
		return fmt.Errorf("failed to set total users: %w", err)
	}

	return nil
}

// UpdateProgress checkpoints aggregate counters after a batch settles.
// Only the orchestrator goroutine calls this, never per-user tasks.
func (r *jobRepository) UpdateProgress(ctx context.Context, id string, processed, successful, failed int) error {
	query := `
		UPDATE job_runs
		SET processed_users = $2, successful_syncs = $3, failed_syncs = $4
		WHERE id = $1
	`

	if _, err := r.db.DB.ExecContext(ctx, query, id, processed, successful, failed); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// FinalizeRun moves the run to its terminal status. The status guard
// makes finalization idempotent: an already-terminal run is untouched.
func (r *jobRepository) FinalizeRun(ctx context.Context, id, status string, errorMessage *string) error {
	query := `
		UPDATE job_runs
		SET status = $2, completed_at = NOW(), error_message = $3
		WHERE id = $1 AND status = 'running'
	`

	if _, err := r.db.DB.ExecContext(ctx, query, id, status, errorMessage); err != nil {
		return fmt.Errorf("failed to finalize job run: %w", err)
	}

	return nil
}

// CreateLog appends a per-user sync attempt record
func (r *jobRepository) CreateLog(ctx context.Context, log *domain.JobRunLog) error {
	query := `
		INSERT INTO job_run_logs (id, job_run_id, user_id, status,
		                          activities_synced, sync_duration, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		log.ID,
		log.JobRunID,
		log.UserID,
		log.Status,
		log.ActivitiesSynced,
		log.SyncDurationSeconds,
		log.ErrorMessage,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job run log: %w", err)
	}

	return nil
}

// ListLogsByRun returns the per-user attempts of one run, joined to the
// user's name and email for the admin details view
func (r *jobRepository) ListLogsByRun(ctx context.Context, runID string) ([]*domain.JobRunLog, error) {
	query := `
		SELECT l.id, l.job_run_id, l.user_id, l.status,
		       l.activities_synced, l.sync_duration, l.error_message, l.created_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM job_run_logs l
		LEFT JOIN users u ON l.user_id = u.id
		WHERE l.job_run_id = $1
		ORDER BY l.created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job run logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.JobRunLog
	for rows.Next() {
		log := &domain.JobRunLog{}
		var (
			jobRunID     sql.NullString
			errorMessage sql.NullString
		)

		err := rows.Scan(
			&log.ID,
			&jobRunID,
			&log.UserID,
			&log.Status,
			&log.ActivitiesSynced,
			&log.SyncDurationSeconds,
			&errorMessage,
			&log.CreatedAt,
			&log.UserName,
			&log.UserEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run log: %w", err)
		}

		if jobRunID.Valid {
			log.JobRunID = &jobRunID.String
		}
		if errorMessage.Valid {
			log.ErrorMessage = &errorMessage.String
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job run logs: %w", err)
	}

	return logs, nil
}

// DeleteLogsBefore purges per-user logs past the retention window
func (r *jobRepository) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM job_run_logs WHERE created_at < $1`

	result, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old job run logs: %w", err)
	}

	return result.RowsAffected()
}

// DeleteTerminalRunsBefore purges completed and failed runs past the
// retention window. Runs still in the running state are kept.
func (r *jobRepository) DeleteTerminalRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM job_runs
		WHERE created_at < $1
		  AND status IN ('completed', 'failed')
	`

	result, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old job runs: %w", err)
	}

	return result.RowsAffected()
}
