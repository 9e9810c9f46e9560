package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"time"

	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/pkg/database"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, email, name, status,
	strava_access_token, strava_refresh_token, strava_token_expires_at,
	auto_sync_enabled, last_sync_at,
	total_activities, total_distance, total_time, last_activity_date,
	created_at, updated_at
`

const qualifiedUserColumns = `
	u.id, u.email, u.name, u.status,
	u.strava_access_token, u.strava_refresh_token, u.strava_token_expires_at,
	u.auto_sync_enabled, u.last_sync_at,
	u.total_activities, u.total_distance, u.total_time, u.last_activity_date,
	u.created_at, u.updated_at
`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	user := &domain.User{}
	var (
		accessToken      sql.NullString
		refreshToken     sql.NullString
		tokenExpiresAt   sql.NullTime
		lastSyncAt       sql.NullTime
		lastActivityDate sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Status,
		&accessToken,
		&refreshToken,
		&tokenExpiresAt,
		&user.AutoSyncEnabled,
		&lastSyncAt,
		&user.TotalActivities,
		&user.TotalDistance,
		&user.TotalTimeSeconds,
		&lastActivityDate,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accessToken.Valid {
		user.AccessToken = &accessToken.String
	}
	if refreshToken.Valid {
		user.RefreshToken = &refreshToken.String
	}
	if tokenExpiresAt.Valid {
		user.TokenExpiresAt = &tokenExpiresAt.Time
	}
	if lastSyncAt.Valid {
		user.LastSyncAt = &lastSyncAt.Time
	}
	if lastActivityDate.Valid {
		user.LastActivityDate = &lastActivityDate.Time
	}

	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// FindEligibleForSync returns the batch-sync user set. Never-synced
// users sort first so they are prioritized.
func (r *userRepository) FindEligibleForSync(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE status = 'active'
		  AND auto_sync_enabled = true
		  AND strava_access_token IS NOT NULL
		  AND strava_refresh_token IS NOT NULL
		ORDER BY last_sync_at ASC NULLS FIRST
	`

	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// UpdateCredential overwrites the stored token triple in a single
// read-modify-write statement.
func (r *userRepository) UpdateCredential(ctx context.Context, userID string, cred domain.Credential) error {
	query := `
		UPDATE users
		SET strava_access_token = $2,
		    strava_refresh_token = $3,
		    strava_token_expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// UpdateLastSync stamps a successful sync for the user
func (r *userRepository) UpdateLastSync(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET last_sync_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// UpdateAutoSync toggles the auto-sync flag and returns the updated user
func (r *userRepository) UpdateAutoSync(ctx context.Context, userID string, enabled bool) (*domain.User, error) {
	query := `
		UPDATE users
		SET auto_sync_enabled = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, userID, enabled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update auto sync: %w", err)
	}

	return user, nil
}

// GetSyncStatus returns the admin sync-health view for one user
func (r *userRepository) GetSyncStatus(ctx context.Context, userID string) (*domain.UserSyncStatus, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			COUNT(a.id) AS total_activities,
			COUNT(a.id) FILTER (WHERE a.created_at > NOW() - INTERVAL '7 days') AS recent_activities,
			EXISTS (
				SELECT 1 FROM job_run_logs l
				WHERE l.user_id = $1
				  AND l.status = 'failed'
				  AND l.created_at > NOW() - INTERVAL '1 day'
			) AS has_recent_errors
		FROM activities a
		WHERE a.user_id = $1
	`

	status := &domain.UserSyncStatus{User: user}
	err = r.db.DB.QueryRowContext(ctx, query, userID).Scan(
		&status.TotalActivities,
		&status.RecentActivities,
		&status.HasRecentErrors,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	return status, nil
}

// FindWithNewMatches returns auto-sync users with matched activities
// created after the given instant
func (r *userRepository) FindWithNewMatches(ctx context.Context, since time.Time) ([]domain.UserNewActivities, error) {
	query := `
		SELECT ` + qualifiedUserColumns + `, COUNT(a.id) AS new_activities
		FROM users u
		INNER JOIN activities a ON u.id = a.user_id
		WHERE a.created_at > $1
		  AND a.sync_status = 'matched'
		  AND u.auto_sync_enabled = true
		GROUP BY u.id
		HAVING COUNT(a.id) > 0
	`

	rows, err := r.db.DB.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with new matches: %w", err)
	}
	defer rows.Close()

	var results []domain.UserNewActivities
	for rows.Next() {
		user := &domain.User{}
		var (
			accessToken      sql.NullString
			refreshToken     sql.NullString
			tokenExpiresAt   sql.NullTime
			lastSyncAt       sql.NullTime
			lastActivityDate sql.NullTime
			newActivities    int
		)

		err := rows.Scan(
			&user.ID, &user.Email, &user.Name, &user.Status,
			&accessToken, &refreshToken, &tokenExpiresAt,
			&user.AutoSyncEnabled, &lastSyncAt,
			&user.TotalActivities, &user.TotalDistance, &user.TotalTimeSeconds, &lastActivityDate,
			&user.CreatedAt, &user.UpdatedAt,
			&newActivities,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user with new matches: %w", err)
		}

		if accessToken.Valid {
			user.AccessToken = &accessToken.String
		}
		if refreshToken.Valid {
			user.RefreshToken = &refreshToken.String
		}
		if tokenExpiresAt.Valid {
			user.TokenExpiresAt = &tokenExpiresAt.Time
		}
		if lastSyncAt.Valid {
			user.LastSyncAt = &lastSyncAt.Time
		}
		if lastActivityDate.Valid {
			user.LastActivityDate = &lastActivityDate.Time
		}

		results = append(results, domain.UserNewActivities{User: user, NewActivities: newActivities})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users with new matches: %w", err)
	}

	return results, nil
}

// RecomputeStatistics refreshes per-user aggregates from the activities table
func (r *userRepository) RecomputeStatistics(ctx context.Context) error {
	query := `
		UPDATE users u
		SET
			total_activities = (SELECT COUNT(*) FROM activities WHERE user_id = u.id),
			total_distance = (SELECT COALESCE(SUM(distance), 0) FROM activities WHERE user_id = u.id),
			total_time = (SELECT COALESCE(SUM(moving_time), 0) FROM activities WHERE user_id = u.id),
			last_activity_date = (SELECT MAX(start_date) FROM activities WHERE user_id = u.id),
			updated_at = NOW()
		WHERE u.status = 'active'
	`

	if _, err := r.db.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to recompute user statistics: %w", err)
	}

	return nil
}
