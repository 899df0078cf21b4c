package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/pkg/config"
)

type RatesAPIClient struct {
	baseURL    string
	httpClient *http.Client
	config     config.RatesConfig
	logger     zerolog.Logger
}

func NewRatesAPIClient(cfg config.RatesConfig, logger zerolog.Logger) *RatesAPIClient {
	return &RatesAPIClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		config: cfg,
		logger: logger.With().Str("component", "rates_client").Logger(),
	}
}

func (c *RatesAPIClient) GetExchangeRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	return c.getExchangeRateWithRetry(ctx, base, quote, 0)
}

func (c *RatesAPIClient) getExchangeRateWithRetry(ctx context.Context, base, quote string, attempt int) (*domain.ExchangeRate, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = fmt.Sprintf("/v1/rates/%s/%s", base, quote)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if IsTransient(err) && attempt < c.config.MaxRetries {
			backoff := calculateBackoff(attempt, c.config.RetryBackoffBase)
			c.logger.Info().
				Err(err).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Rate request failed, retrying after backoff")
			time.Sleep(backoff)
			return c.getExchangeRateWithRetry(ctx, base, quote, attempt+1)
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := &HTTPError{Status: resp.StatusCode, Body: string(body)}
		if IsTransient(httpErr) && attempt < c.config.MaxRetries {
			backoff := calculateBackoff(attempt, c.config.RetryBackoffBase)
			c.logger.Warn().
				Int("status_code", resp.StatusCode).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Received non-200 status, retrying after backoff")
			time.Sleep(backoff)
			return c.getExchangeRateWithRetry(ctx, base, quote, attempt+1)
		}
		return nil, httpErr
	}

	var response struct {
		Base      string `json:"base"`
		Quote     string `json:"quote"`
		Rate      string `json:"rate"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing JSON response failed: %w", err)
	}

	rate, err := decimal.NewFromString(response.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate format: %w", err)
	}

	return &domain.ExchangeRate{
		Base:        base,
		Quote:       quote,
		Rate:        rate,
		RetrievedAt: time.Unix(response.Timestamp, 0),
	}, nil
}

func calculateBackoff(attempt, base int) time.Duration {
	if base <= 0 {
		base = 2
	}
	backoff := time.Duration(base*(1<<attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
