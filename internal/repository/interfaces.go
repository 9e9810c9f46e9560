package repository

import (
	"context"
	"time"

	"github.com/veloplan/sync-service/internal/domain"
)

// UserRepository defines credential-store and sync bookkeeping operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// FindEligibleForSync returns active users with auto-sync enabled and
	// a stored credential, oldest last_sync_at first (never-synced first).
	FindEligibleForSync(ctx context.Context) ([]*domain.User, error)
	UpdateCredential(ctx context.Context, userID string, cred domain.Credential) error
	UpdateLastSync(ctx context.Context, userID string) error
	UpdateAutoSync(ctx context.Context, userID string, enabled bool) (*domain.User, error)
	GetSyncStatus(ctx context.Context, userID string) (*domain.UserSyncStatus, error)
	// FindWithNewMatches returns users holding activities matched after
	// the given instant, with the per-user count.
	FindWithNewMatches(ctx context.Context, since time.Time) ([]domain.UserNewActivities, error)
	// RecomputeStatistics refreshes the per-user aggregate columns from
	// the activities table.
	RecomputeStatistics(ctx context.Context) error
}

// ActivityRepository defines persistence for synced activities
type ActivityRepository interface {
	GetByStravaID(ctx context.Context, userID string, stravaID int64) (*domain.Activity, error)
	// Create persists a new activity. Returns ErrDuplicateActivity when
	// the (user_id, strava_id) row already exists.
	Create(ctx context.Context, activity *domain.Activity) error
}

// WorkoutRepository exposes the planned-workout candidates for matching
type WorkoutRepository interface {
	FindByUserAndDateRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Workout, error)
}

// JobRepository defines the job run ledger operations
type JobRepository interface {
	CreateRun(ctx context.Context, run *domain.JobRun) error
	GetRun(ctx context.Context, id string) (*domain.JobRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.JobRun, error)
	SetTotalUsers(ctx context.Context, id string, total int) error
	UpdateProgress(ctx context.Context, id string, processed, successful, failed int) error
	// FinalizeRun moves the run to a terminal status exactly once; a run
	// that is already terminal is left untouched.
	FinalizeRun(ctx context.Context, id, status string, errorMessage *string) error

	CreateLog(ctx context.Context, log *domain.JobRunLog) error
	ListLogsByRun(ctx context.Context, runID string) ([]*domain.JobRunLog, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteTerminalRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
