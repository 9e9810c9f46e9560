package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateActivity is returned when an activity with the same
	// (user_id, strava_id) already exists; callers treat it as a no-op
	ErrDuplicateActivity = errors.New("activity already synced for this user")
)
