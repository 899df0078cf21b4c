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

// FulfillmentAPIClient hands confirmed orders to the external fulfillment
// service. Failures surface to the orchestrator, which raises a blocker
// rather than failing the payment.
type FulfillmentAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewFulfillmentAPIClient(cfg config.FulfillmentConfig, logger zerolog.Logger) *FulfillmentAPIClient {
	return &FulfillmentAPIClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		logger: logger.With().Str("component", "fulfillment_client").Logger(),
	}
}

func (c *FulfillmentAPIClient) Fulfill(ctx context.Context, req domain.FulfillmentRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling fulfillment request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders/fulfill", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Info().
		Str("payment_id", req.PaymentID).
		Str("kind", string(req.Kind)).
		Msg("Fulfillment request accepted")
	return nil
}
