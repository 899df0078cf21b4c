package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/pkg/config"
)

// SMSNotifier delivers status notifications through the SMS gateway.
type SMSNotifier struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewSMSNotifier(cfg config.NotificationsConfig, logger zerolog.Logger) *SMSNotifier {
	return &SMSNotifier{
		gatewayURL: cfg.SMSGatewayURL,
		apiKey:     cfg.SMSAPIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "sms_notifier").Logger(),
	}
}

func (n *SMSNotifier) Channel() string { return "sms" }

func (n *SMSNotifier) Notify(ctx context.Context, paymentID string, status domain.PaymentStatus, message string) error {
	payload, err := json.Marshal(map[string]string{
		"reference": paymentID,
		"message":   message,
	})
	if err != nil {
		return fmt.Errorf("marshaling sms payload failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// WebhookNotifier posts the full transition to a merchant-configured
// webhook endpoint.
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewWebhookNotifier(cfg config.NotificationsConfig, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "webhook_notifier").Logger(),
	}
}

func (n *WebhookNotifier) Channel() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, paymentID string, status domain.PaymentStatus, message string) error {
	payload, err := json.Marshal(map[string]string{
		"payment_id": paymentID,
		"status":     string(status),
		"message":    message,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}
