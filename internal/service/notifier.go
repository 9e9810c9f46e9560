package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veloplan/sync-service/internal/domain"
	"go.uber.org/zap"
)

// WebhookNotifier delivers notifications by POSTing a JSON payload to a
// configured endpoint, typically an internal mailer or chat bridge.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a webhook-backed notifier
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type webhookPayload struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	NewActivities int    `json:"new_activities"`
	SentAt        string `json:"sent_at"`
}

// Send posts the notification payload. Any non-2xx response is a
// delivery failure.
func (n *WebhookNotifier) Send(ctx context.Context, user *domain.User, newActivityCount int) error {
	body, err := json.Marshal(webhookPayload{
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
		NewActivities: newActivityCount,
		SentAt:        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	n.logger.Debug("notification delivered",
		zap.String("user_id", user.ID),
		zap.Int("new_activities", newActivityCount),
	)

	return nil
}

// NoopNotifier drops notifications. Used when no webhook endpoint is
// configured.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a notifier that logs instead of delivering
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Send(_ context.Context, user *domain.User, newActivityCount int) error {
	n.logger.Info("notification skipped, no webhook configured",
		zap.String("user_id", user.ID),
		zap.Int("new_activities", newActivityCount),
	)
	return nil
}
