package service

import (
	"context"
	"fmt"

	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/repository"
	"github.com/veloplan/sync-service/internal/strava"
	"github.com/veloplan/sync-service/internal/utils"
	"go.uber.org/zap"
)

// AccountService handles the per-user surface: connecting the external
// platform, toggling auto sync and inspecting sync health.
type AccountService struct {
	users  repository.UserRepository
	api    StravaAPI
	tokens *TokenManager
	jwt    *utils.JWTManager
	logger *zap.Logger
}

// NewAccountService creates the account service
func NewAccountService(
	users repository.UserRepository,
	api StravaAPI,
	tokens *TokenManager,
	jwt *utils.JWTManager,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		users:  users,
		api:    api,
		tokens: tokens,
		jwt:    jwt,
		logger: logger,
	}
}

// ConnectURL builds the OAuth consent URL for the user. The state
// parameter is a signed token binding the callback to this user.
func (s *AccountService) ConnectURL(ctx context.Context, userID string) (string, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return "", err
	}

	state, err := s.jwt.GenerateStateToken(userID)
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}

	return s.api.AuthorizationURL(state), nil
}

// HandleCallback completes the OAuth flow: it validates the state,
// exchanges the code and persists the credential.
func (s *AccountService) HandleCallback(ctx context.Context, state, code string) (*domain.User, error) {
	userID, err := s.jwt.ValidateStateToken(state)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}

	grant, err := s.api.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	cred := domain.Credential{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
	}
	if err := s.users.UpdateCredential(ctx, userID, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	s.logger.Info("strava account connected",
		zap.String("user_id", userID),
		zap.Int64("athlete_id", grant.AthleteID),
	)

	return s.users.GetByID(ctx, userID)
}

// SetAutoSync flips the user's auto sync flag.
func (s *AccountService) SetAutoSync(ctx context.Context, userID string, enabled bool) (*domain.User, error) {
	user, err := s.users.UpdateAutoSync(ctx, userID, enabled)
	if err != nil {
		return nil, err
	}

	s.logger.Info("auto sync updated",
		zap.String("user_id", userID),
		zap.Bool("enabled", enabled),
	)

	return user, nil
}

// SyncStatus returns the user's sync health summary.
func (s *AccountService) SyncStatus(ctx context.Context, userID string) (*domain.UserSyncStatus, error) {
	return s.users.GetSyncStatus(ctx, userID)
}

// ActivityStreams fetches the detail streams of one of the user's
// activities from the remote platform.
func (s *AccountService) ActivityStreams(ctx context.Context, userID string, stravaID int64, fields []string) (strava.StreamSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err = s.tokens.EnsureValidToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return s.api.GetActivityStreams(ctx, *user.AccessToken, stravaID, fields)
}
