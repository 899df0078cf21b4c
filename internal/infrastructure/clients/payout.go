package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/pkg/config"
)

// PayoutProviderClient talks to the mobile-money provider: a client
// credentials token endpoint plus the B2C payment request endpoint. The
// access token is cached and refreshed shortly before expiry.
type PayoutProviderClient struct {
	cfg        config.PayoutConfig
	publicURL  string
	httpClient *http.Client
	logger     zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayoutProviderClient(cfg config.PayoutConfig, publicURL string, logger zerolog.Logger) *PayoutProviderClient {
	return &PayoutProviderClient{
		cfg:       cfg,
		publicURL: publicURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: logger.With().Str("component", "payout_client").Logger(),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (c *PayoutProviderClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-c.cfg.TokenEarlyExpiry)) {
		return c.accessToken, nil
	}

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	ttl, err := strconv.Atoi(tr.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3600
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(ttl) * time.Second)

	c.logger.Info().Time("expires_at", c.tokenExpiry).Msg("Provider access token refreshed")
	return c.accessToken, nil
}

type b2cRequest struct {
	InitiatorName      string `json:"InitiatorName"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	Amount             string `json:"Amount"`
	PartyA             string `json:"PartyA"`
	PartyB             string `json:"PartyB"`
	Remarks            string `json:"Remarks"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	ResultURL          string `json:"ResultURL"`
	Occasion           string `json:"Occasion"`
}

type b2cResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// SubmitPayout performs a single submission attempt. Retry ownership sits
// with the settlement processor, which classifies the returned error.
func (c *PayoutProviderClient) SubmitPayout(ctx context.Context, sub interfaces.PayoutSubmission) (*interfaces.PayoutAck, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	payload := b2cRequest{
		InitiatorName:      c.cfg.InitiatorName,
		SecurityCredential: c.cfg.SecurityCred,
		CommandID:          "BusinessPayment",
		Amount:             sub.Amount.StringFixed(2),
		PartyA:             c.cfg.ShortCode,
		PartyB:             sub.Phone,
		Remarks:            sub.Remarks,
		QueueTimeOutURL:    c.publicURL + "/callback/timeout",
		ResultURL:          c.publicURL + "/callback/result",
		Occasion:           sub.OccasionRef,
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout request: %w", err)
	}

	url := c.cfg.BaseURL + "/mpesa/b2c/v1/paymentrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payout response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked upstream; drop the cache so the next
		// attempt refreshes.
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", string(respBody)).
			Msg("Payout submission rejected")
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var br b2cResponse
	if err := json.Unmarshal(respBody, &br); err != nil {
		return nil, fmt.Errorf("failed to parse payout response: %w", err)
	}

	c.logger.Info().
		Str("conversation_id", br.ConversationID).
		Str("response_code", br.ResponseCode).
		Str("phone", sub.Phone).
		Msg("Payout submitted")

	return &interfaces.PayoutAck{
		ConversationID:           br.ConversationID,
		OriginatorConversationID: br.OriginatorConversationID,
		ResponseCode:             br.ResponseCode,
		ResponseDescription:      br.ResponseDescription,
	}, nil
}
