package notificator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

// WebhookPayload is POSTed as JSON to subscription webhooks.
type WebhookPayload struct {
	Event  string                  `json:"event"`
	Token  *models.TokenDeployment `json:"token"`
	SentAt time.Time               `json:"sent_at"`
}

type WebhookNotificator struct {
	logger *logger.Logger
	client *http.Client
}

func NewWebhookNotificator(logger *logger.Logger, timeout time.Duration) *WebhookNotificator {
	return &WebhookNotificator{
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotificator) SendNotification(ctx context.Context, url string, token *models.TokenDeployment) error {
	body, err := json.Marshal(WebhookPayload{Event: "token_discovered", Token: token, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(msg))
	}
	w.logger.Debug("Webhook delivered", "url", url, "address", token.ContractAddress)
	return nil
}
