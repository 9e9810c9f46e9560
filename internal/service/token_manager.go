package service

import (
	"context"
	"fmt"
	"time"

	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/repository"
	"go.uber.org/zap"
)

// TokenManager owns the credential lifecycle: it decides per user
// whether the stored access token is usable, refreshes it when expired,
// and persists the new pair. Within one orchestrator run each user is
// processed by exactly one task, so the refresh-and-persist step is a
// single uncontended read-modify-write.
type TokenManager struct {
	users  repository.UserRepository
	api    StravaAPI
	logger *zap.Logger
}

// NewTokenManager creates a token lifecycle manager
func NewTokenManager(users repository.UserRepository, api StravaAPI, logger *zap.Logger) *TokenManager {
	return &TokenManager{
		users:  users,
		api:    api,
		logger: logger,
	}
}

// EnsureValidToken returns a copy of the user holding a usable access
// token. A user without a credential fails with ErrNotConnected; an
// expired token is refreshed and the new credential persisted before
// returning. On refresh failure the stored credential is left untouched
// and the error surfaces as RefreshFailedError.
func (m *TokenManager) EnsureValidToken(ctx context.Context, user *domain.User) (*domain.User, error) {
	if !user.HasCredential() {
		return nil, ErrNotConnected
	}

	if !user.TokenExpired(time.Now()) {
		return user, nil
	}

	m.logger.Info("refreshing expired strava token",
		zap.String("user_id", user.ID),
		zap.Timep("expired_at", user.TokenExpiresAt),
	)

	creds, err := m.api.RefreshToken(ctx, *user.RefreshToken)
	if err != nil {
		return nil, &RefreshFailedError{Cause: err}
	}

	cred := domain.Credential{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
	}
	if err := m.users.UpdateCredential(ctx, user.ID, cred); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	refreshed := *user
	refreshed.AccessToken = &cred.AccessToken
	refreshed.RefreshToken = &cred.RefreshToken
	refreshed.TokenExpiresAt = &cred.ExpiresAt

	return &refreshed, nil
}
