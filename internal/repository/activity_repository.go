package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/pkg/database"
)

// activityRepository implements ActivityRepository interface
type activityRepository struct {
	db *database.Postgres
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.Postgres) ActivityRepository {
	return &activityRepository{db: db}
}

// GetByStravaID retrieves an activity by its external identifier
func (r *activityRepository) GetByStravaID(ctx context.Context, userID string, stravaID int64) (*domain.Activity, error) {
	query := `
		SELECT id, user_id, strava_id, name, type, sport_type, start_date,
		       distance, moving_time, elapsed_time, total_elevation_gain,
		       average_speed, max_speed, average_cadence, average_watts,
		       kilojoules, average_heartrate, max_heartrate, tss, map_polyline,
		       workout_id, sync_status, created_at
		FROM activities
		WHERE user_id = $1 AND strava_id = $2
	`

	activity := &domain.Activity{}
	var (
		avgCadence  sql.NullFloat64
		avgWatts    sql.NullFloat64
		kilojoules  sql.NullFloat64
		avgHR       sql.NullFloat64
		maxHR       sql.NullFloat64
		tss         sql.NullFloat64
		mapPolyline sql.NullString
		workoutID   sql.NullString
	)

	err := r.db.DB.QueryRowContext(ctx, query, userID, stravaID).Scan(
		&activity.ID,
		&activity.UserID,
		&activity.StravaID,
		&activity.Name,
		&activity.Type,
		&activity.SportType,
		&activity.StartDate,
		&activity.Distance,
		&activity.MovingTimeSeconds,
		&activity.ElapsedTimeSeconds,
		&activity.TotalElevationGain,
		&activity.AverageSpeed,
		&activity.MaxSpeed,
		&avgCadence,
		&avgWatts,
		&kilojoules,
		&avgHR,
		&maxHR,
		&tss,
		&mapPolyline,
		&workoutID,
		&activity.SyncStatus,
		&activity.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("activity %d for user %s not found: %w", stravaID, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	if avgCadence.Valid {
		activity.AverageCadence = &avgCadence.Float64
	}
	if avgWatts.Valid {
		activity.AverageWatts = &avgWatts.Float64
	}
	if kilojoules.Valid {
		activity.Kilojoules = &kilojoules.Float64
	}
	if avgHR.Valid {
		activity.AverageHeartrate = &avgHR.Float64
	}
	if maxHR.Valid {
		activity.MaxHeartrate = &maxHR.Float64
	}
	if tss.Valid {
		activity.TSS = &tss.Float64
	}
	if mapPolyline.Valid {
		activity.MapPolyline = &mapPolyline.String
	}
	if workoutID.Valid {
		activity.WorkoutID = &workoutID.String
	}

	return activity, nil
}

// Create persists a new activity. The unique (user_id, strava_id)
// constraint makes re-runs idempotent: conflicting inserts surface as
// ErrDuplicateActivity and are skipped by the orchestrator.
func (r *activityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	query := `
		INSERT INTO activities (
			id, user_id, strava_id, name, type, sport_type, start_date,
			distance, moving_time, elapsed_time, total_elevation_gain,
			average_speed, max_speed, average_cadence, average_watts,
			kilojoules, average_heartrate, max_heartrate, tss, map_polyline,
			workout_id, sync_status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	if activity.SyncStatus == "" {
		activity.SyncStatus = domain.SyncStatusUnmatched
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		activity.ID,
		activity.UserID,
		activity.StravaID,
		activity.Name,
		activity.Type,
		activity.SportType,
		activity.StartDate,
		activity.Distance,
		activity.MovingTimeSeconds,
		activity.ElapsedTimeSeconds,
		activity.TotalElevationGain,
		activity.AverageSpeed,
		activity.MaxSpeed,
		activity.AverageCadence,
		activity.AverageWatts,
		activity.Kilojoules,
		activity.AverageHeartrate,
		activity.MaxHeartrate,
		activity.TSS,
		activity.MapPolyline,
		activity.WorkoutID,
		activity.SyncStatus,
		activity.CreatedAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate activity)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("activity %d already exists for user %s: %w",
					activity.StravaID, activity.UserID, ErrDuplicateActivity)
			}
		}
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}
