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
	"github.com/shopspring/decimal"

	"github.com/kitepay/railbridge/pkg/config"
)

// ReversalAPIClient executes ledger-side reversals for approved refunds.
type ReversalAPIClient struct {
	reversalURL string
	httpClient  *http.Client
	logger      zerolog.Logger
}

func NewReversalAPIClient(cfg config.RefundConfig, logger zerolog.Logger) *ReversalAPIClient {
	return &ReversalAPIClient{
		reversalURL: cfg.ReversalURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		logger: logger.With().Str("component", "reversal_client").Logger(),
	}
}

func (c *ReversalAPIClient) Reverse(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) error {
	payload, err := json.Marshal(map[string]string{
		"payment_id": paymentID,
		"amount":     amount.StringFixed(2),
		"currency":   currency,
	})
	if err != nil {
		return fmt.Errorf("marshaling reversal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.reversalURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	c.logger.Info().
		Str("payment_id", paymentID).
		Str("amount", amount.StringFixed(2)).
		Msg("Reversal accepted")
	return nil
}
