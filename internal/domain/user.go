package domain

import "time"

// User represents a rider account with its external platform credential.
// Only the credential and sync bookkeeping columns are owned by this
// service; profile fields are read-only here.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	Name            string     `json:"name" db:"name"`
	Status          string     `json:"status" db:"status"`
	AccessToken     *string    `json:"-" db:"strava_access_token"`
	RefreshToken    *string    `json:"-" db:"strava_refresh_token"`
	TokenExpiresAt  *time.Time `json:"token_expires_at" db:"strava_token_expires_at"`
	AutoSyncEnabled bool       `json:"auto_sync_enabled" db:"auto_sync_enabled"`
	LastSyncAt      *time.Time `json:"last_sync_at" db:"last_sync_at"`

	TotalActivities  int        `json:"total_activities" db:"total_activities"`
	TotalDistance    float64    `json:"total_distance" db:"total_distance"`
	TotalTimeSeconds int        `json:"total_time" db:"total_time"`
	LastActivityDate *time.Time `json:"last_activity_date" db:"last_activity_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Credential is the token triple persisted after an exchange or refresh.
// Invariant: all three fields are set together or not at all.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// HasCredential reports whether the user ever connected the external platform.
func (u *User) HasCredential() bool {
	return u.AccessToken != nil && u.RefreshToken != nil && u.TokenExpiresAt != nil
}

// TokenExpired reports whether the stored access token must be refreshed
// before use. A missing expiry counts as expired.
func (u *User) TokenExpired(now time.Time) bool {
	if u.TokenExpiresAt == nil {
		return true
	}
	return !now.Before(*u.TokenExpiresAt)
}

// UserSyncStatus is the admin view of one user's sync health.
type UserSyncStatus struct {
	User             *User `json:"user"`
	TotalActivities  int   `json:"total_activities"`
	RecentActivities int   `json:"recent_activities"`
	HasRecentErrors  bool  `json:"has_recent_errors"`
}

// UserNewActivities pairs a user with the count of freshly matched
// activities inside the notification window.
type UserNewActivities struct {
	User          *User
	NewActivities int
}
