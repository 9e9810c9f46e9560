package domain

import "time"

// Workout is a planned structured session authored in the workout
// builder. Read-only from this service's perspective; consumed as a
// matching candidate for freshly synced activities.
type Workout struct {
	ID                   string    `json:"id" db:"id"`
	UserID               string    `json:"user_id" db:"user_id"`
	Name                 string    `json:"name" db:"name"`
	SportType            string    `json:"sport_type" db:"sport_type"`
	TotalDurationMinutes int       `json:"total_duration" db:"total_duration"`
	TotalTSS             *int      `json:"total_tss" db:"total_tss"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}
