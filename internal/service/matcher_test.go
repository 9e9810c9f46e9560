package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloplan/sync-service/internal/domain"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestScorePerfectMatch(t *testing.T) {
	matcher := NewMatcher(0.6)

	workout := &domain.Workout{
		Name:                 "Endurance Ride",
		SportType:            "ride",
		TotalDurationMinutes: 60,
		TotalTSS:             intPtr(100),
	}
	activity := &domain.Activity{
		Name:              "Endurance Ride",
		Type:              "Ride",
		MovingTimeSeconds: 3600,
		TSS:               floatPtr(100),
	}

	score := matcher.Score(workout, activity)
	assert.GreaterOrEqual(t, score, 0.9)
}

func TestScoreDurationMismatch(t *testing.T) {
	matcher := NewMatcher(0.6)

	workout := &domain.Workout{
		Name:                 "Endurance Ride",
		SportType:            "ride",
		TotalDurationMinutes: 60,
		TotalTSS:             intPtr(100),
	}
	// Three hours recorded against a one hour plan, no effort score,
	// unrelated name.
	activity := &domain.Activity{
		Name:              "Commute",
		Type:              "Ride",
		MovingTimeSeconds: 10800,
	}

	score := matcher.Score(workout, activity)
	assert.LessOrEqual(t, score, 0.5)
}

func TestScoreEffortTermSkippedWhenMissing(t *testing.T) {
	matcher := NewMatcher(0.6)

	withTSS := &domain.Workout{SportType: "ride", TotalDurationMinutes: 60, TotalTSS: intPtr(80)}
	withoutTSS := &domain.Workout{SportType: "ride", TotalDurationMinutes: 60}
	activity := &domain.Activity{Type: "Ride", MovingTimeSeconds: 3600}

	// The activity carries no effort score, so both candidates score
	// identically.
	assert.Equal(t, matcher.Score(withTSS, activity), matcher.Score(withoutTSS, activity))
}

func TestMatchThresholdIsStrict(t *testing.T) {
	matcher := NewMatcher(0.6)

	// Sport and name align (40 points); the duration gap tunes the
	// total around the threshold.
	workout := domain.Workout{
		ID:                   "workout-1",
		Name:                 "Tempo Ride",
		SportType:            "ride",
		TotalDurationMinutes: 60,
	}

	// 110 minutes recorded: 30 - 50/5 = 20 duration points, 0.60 total.
	atThreshold := &domain.Activity{Name: "Tempo Ride", Type: "Ride", MovingTimeSeconds: 6600}
	_, ok := matcher.Match([]domain.Workout{workout}, atThreshold)
	assert.False(t, ok, "a score equal to the threshold must not match")

	// 105 minutes recorded: 30 - 45/5 = 21 duration points, 0.61 total.
	aboveThreshold := &domain.Activity{Name: "Tempo Ride", Type: "Ride", MovingTimeSeconds: 6300}
	matched, ok := matcher.Match([]domain.Workout{workout}, aboveThreshold)
	require.True(t, ok)
	assert.Equal(t, "workout-1", matched)
}

func TestMatchPicksHighestScore(t *testing.T) {
	matcher := NewMatcher(0.6)

	candidates := []domain.Workout{
		{ID: "short", Name: "Intervals", SportType: "ride", TotalDurationMinutes: 30},
		{ID: "exact", Name: "Intervals", SportType: "ride", TotalDurationMinutes: 60},
	}
	activity := &domain.Activity{Name: "Intervals", Type: "Ride", MovingTimeSeconds: 3600}

	matched, ok := matcher.Match(candidates, activity)
	require.True(t, ok)
	assert.Equal(t, "exact", matched)
}

func TestMatchTieBreaksByNearestCreation(t *testing.T) {
	matcher := NewMatcher(0.6)

	start := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	candidates := []domain.Workout{
		{ID: "older", Name: "Sweet Spot", SportType: "ride", TotalDurationMinutes: 60, CreatedAt: start.Add(-20 * time.Hour)},
		{ID: "nearer", Name: "Sweet Spot", SportType: "ride", TotalDurationMinutes: 60, CreatedAt: start.Add(-2 * time.Hour)},
	}
	activity := &domain.Activity{Name: "Sweet Spot", Type: "Ride", MovingTimeSeconds: 3600, StartDate: start}

	matched, ok := matcher.Match(candidates, activity)
	require.True(t, ok)
	assert.Equal(t, "nearer", matched)
}

func TestMatchNoCandidates(t *testing.T) {
	matcher := NewMatcher(0.6)

	activity := &domain.Activity{Name: "Ride", Type: "Ride", MovingTimeSeconds: 3600}
	_, ok := matcher.Match(nil, activity)
	assert.False(t, ok)
}
