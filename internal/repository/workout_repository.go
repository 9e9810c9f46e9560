package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/pkg/database"
)

// workoutRepository implements WorkoutRepository interface
type workoutRepository struct {
	db *database.Postgres
}

// NewWorkoutRepository creates a new workout repository
func NewWorkoutRepository(db *database.Postgres) WorkoutRepository {
	return &workoutRepository{db: db}
}

// FindByUserAndDateRange returns the user's planned workouts created
// inside the window, used as matching candidates.
func (r *workoutRepository) FindByUserAndDateRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Workout, error) {
	query := `
		SELECT id, user_id, name, sport_type, total_duration, total_tss, created_at
		FROM workouts
		WHERE user_id = $1
		  AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query workouts: %w", err)
	}
	defer rows.Close()

	var workouts []domain.Workout
	for rows.Next() {
		var (
			workout  domain.Workout
			totalTSS sql.NullInt64
		)

		err := rows.Scan(
			&workout.ID,
			&workout.UserID,
			&workout.Name,
			&workout.SportType,
			&workout.TotalDurationMinutes,
			&totalTSS,
			&workout.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}

		if totalTSS.Valid {
			tss := int(totalTSS.Int64)
			workout.TotalTSS = &tss
		}

		workouts = append(workouts, workout)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workouts: %w", err)
	}

	return workouts, nil
}
