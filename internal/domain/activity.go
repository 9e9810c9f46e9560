package domain

import "time"

// Activity sync statuses.
const (
	SyncStatusUnmatched = "unmatched"
	SyncStatusMatched   = "matched"
)

// Activity is a recorded session pulled from the external platform.
// (user_id, strava_id) is unique; re-syncing the same window must not
// create duplicates.
type Activity struct {
	ID       string `json:"id" db:"id"`
	UserID   string `json:"user_id" db:"user_id"`
	StravaID int64  `json:"strava_id" db:"strava_id"`

	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type" db:"type"`
	SportType string    `json:"sport_type" db:"sport_type"`
	StartDate time.Time `json:"start_date" db:"start_date"`

	Distance           float64  `json:"distance" db:"distance"`
	MovingTimeSeconds  int      `json:"moving_time" db:"moving_time"`
	ElapsedTimeSeconds int      `json:"elapsed_time" db:"elapsed_time"`
	TotalElevationGain float64  `json:"total_elevation_gain" db:"total_elevation_gain"`
	AverageSpeed       float64  `json:"average_speed" db:"average_speed"`
	MaxSpeed           float64  `json:"max_speed" db:"max_speed"`
	AverageCadence     *float64 `json:"average_cadence" db:"average_cadence"`
	AverageWatts       *float64 `json:"average_watts" db:"average_watts"`
	Kilojoules         *float64 `json:"kilojoules" db:"kilojoules"`
	AverageHeartrate   *float64 `json:"average_heartrate" db:"average_heartrate"`
	MaxHeartrate       *float64 `json:"max_heartrate" db:"max_heartrate"`
	TSS                *float64 `json:"tss" db:"tss"`
	MapPolyline        *string  `json:"map_polyline" db:"map_polyline"`

	WorkoutID  *string `json:"workout_id" db:"workout_id"`
	SyncStatus string  `json:"sync_status" db:"sync_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MovingTimeMinutes converts the recorded moving time for matching
// against planned workout durations.
func (a *Activity) MovingTimeMinutes() float64 {
	return float64(a.MovingTimeSeconds) / 60.0
}
