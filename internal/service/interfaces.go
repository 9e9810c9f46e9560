package service

import (
	"context"
	"time"

	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/strava"
)

// StravaAPI is the remote activity client surface consumed by the sync
// engine. Implemented by strava.Client; faked in tests.
type StravaAPI interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*strava.TokenGrant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*strava.Credentials, error)
	ListActivitiesSince(ctx context.Context, accessToken string, since time.Time, pageSize int) ([]strava.Activity, error)
	GetActivityStreams(ctx context.Context, accessToken string, activityID int64, fields []string) (strava.StreamSet, error)
}

// Notifier delivers best-effort "new activities" notifications. Send
// failures are logged and swallowed by the caller.
type Notifier interface {
	Send(ctx context.Context, user *domain.User, newActivityCount int) error
}
