package domain

import "time"

// Job types executed by the scheduler.
const (
	JobTypeActivitySync  = "activity_sync"
	JobTypeCleanup       = "cleanup"
	JobTypeNotifications = "notifications"
)

// Job run statuses. Running is the only non-terminal state; a run is
// finalized exactly once and never mutated afterwards.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Per-user sync attempt statuses.
const (
	LogStatusSuccess = "success"
	LogStatusFailed  = "failed"
)

// JobRun is one execution instance of a scheduled or manually triggered
// batch routine.
type JobRun struct {
	ID              string     `json:"id" db:"id"`
	JobType         string     `json:"job_type" db:"job_type"`
	Status          string     `json:"status" db:"status"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
	TotalUsers      int        `json:"total_users" db:"total_users"`
	ProcessedUsers  int        `json:"processed_users" db:"processed_users"`
	SuccessfulSyncs int        `json:"successful_syncs" db:"successful_syncs"`
	FailedSyncs     int        `json:"failed_syncs" db:"failed_syncs"`
	ErrorMessage    *string    `json:"error_message" db:"error_message"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Terminal reports whether the run reached a final state.
func (r *JobRun) Terminal() bool {
	return r.Status == JobStatusCompleted || r.Status == JobStatusFailed
}

// JobRunLog records one per-user sync attempt. Append-only; the parent
// run reference is nulled if the run is purged first.
type JobRunLog struct {
	ID                  string    `json:"id" db:"id"`
	JobRunID            *string   `json:"job_run_id" db:"job_run_id"`
	UserID              string    `json:"user_id" db:"user_id"`
	Status              string    `json:"status" db:"status"`
	ActivitiesSynced    int       `json:"activities_synced" db:"activities_synced"`
	SyncDurationSeconds int       `json:"sync_duration" db:"sync_duration"`
	ErrorMessage        *string   `json:"error_message" db:"error_message"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`

	// Populated by the details query join, not stored.
	UserName  string `json:"user_name,omitempty" db:"-"`
	UserEmail string `json:"user_email,omitempty" db:"-"`
}

// SyncResult summarizes one user's completed sync, returned by the
// manual sync endpoint.
type SyncResult struct {
	UserID           string `json:"user_id"`
	ActivitiesSynced int    `json:"activities_synced"`
	DurationSeconds  int    `json:"duration_seconds"`
}
