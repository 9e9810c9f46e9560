package service

import (
	"math"
	"strings"
	"time"

	"github.com/veloplan/sync-service/internal/domain"
)

// Matcher scores a freshly synced activity against the user's planned
// workouts from the same calendar day. Weighted terms sum to 100 points
// and are normalized to [0,1]; only a score strictly above the
// threshold produces a match.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher with the given score threshold
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Score computes the weighted match score in [0,1] for one candidate.
func (m *Matcher) Score(workout *domain.Workout, activity *domain.Activity) float64 {
	var score float64

	// Duration term, up to 30 points. Every 5 minutes of difference
	// costs one point.
	durationDiff := math.Abs(float64(workout.TotalDurationMinutes) - activity.MovingTimeMinutes())
	score += math.Max(0, 30-durationDiff/5)

	// Sport type term, 20 points all-or-nothing.
	if workout.SportType == strings.ToLower(activity.Type) {
		score += 20
	}

	// Effort term, up to 30 points, only when both sides carry an
	// effort score.
	if workout.TotalTSS != nil && activity.TSS != nil {
		tssDiff := math.Abs(float64(*workout.TotalTSS) - *activity.TSS)
		score += math.Max(0, 30-tssDiff/3)
	}

	// Name containment term, 20 points when either name contains the
	// other, case-insensitive.
	workoutName := strings.ToLower(workout.Name)
	activityName := strings.ToLower(activity.Name)
	if strings.Contains(activityName, workoutName) || strings.Contains(workoutName, activityName) {
		score += 20
	}

	return score / 100
}

// Match returns the best candidate scoring strictly above the
// threshold. Equal scores are broken deterministically by picking the
// candidate whose creation time is nearest the activity start.
func (m *Matcher) Match(candidates []domain.Workout, activity *domain.Activity) (string, bool) {
	var (
		bestID    string
		bestScore float64
		bestDelta time.Duration
	)

	for i := range candidates {
		workout := &candidates[i]

		score := m.Score(workout, activity)
		if score <= m.threshold {
			continue
		}

		delta := workout.CreatedAt.Sub(activity.StartDate)
		if delta < 0 {
			delta = -delta
		}

		if bestID == "" || score > bestScore || (score == bestScore && delta < bestDelta) {
			bestID = workout.ID
			bestScore = score
			bestDelta = delta
		}
	}

	return bestID, bestID != ""
}
