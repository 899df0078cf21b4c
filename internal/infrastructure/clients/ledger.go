package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/pkg/config"
)

// LedgerClient queries the mirror-node transaction index. Responses are
// cached briefly, keyed by the since-timestamp truncated to the second, so
// many concurrent poll sessions don't multiply upstream call volume.
type LedgerClient struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	retryDelay  time.Duration
	searchLimit int
	cacheTTL    time.Duration
	cacheOn     bool
	logger      zerolog.Logger

	mu    sync.Mutex
	cache map[int64]cacheEntry
}

type cacheEntry struct {
	fetched time.Time
	txs     []domain.ObservedTransaction
}

func NewLedgerClient(cfg config.LedgerConfig, logger zerolog.Logger) *LedgerClient {
	return &LedgerClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		searchLimit: cfg.SearchLimit,
		cacheTTL:    cfg.CacheTTL,
		cacheOn:     cfg.CacheEnabled,
		logger:      logger.With().Str("component", "ledger_client").Logger(),
		cache:       make(map[int64]cacheEntry),
	}
}

type mirrorTransaction struct {
	TransactionID      string `json:"transaction_id"`
	ConsensusTimestamp string `json:"consensus_timestamp"`
	TransactionHash    string `json:"transaction_hash"`
	Transfers          []struct {
		Account string `json:"account"`
		Amount  int64  `json:"amount"`
	} `json:"transfers"`
	MemoBase64   string `json:"memo_base64"`
	Result       string `json:"result"`
	ChargedTxFee int64  `json:"charged_tx_fee"`
}

type mirrorResponse struct {
	Transactions []mirrorTransaction `json:"transactions"`
}

func (c *LedgerClient) SearchSince(ctx context.Context, since time.Time) ([]domain.ObservedTransaction, error) {
	key := since.Unix()

	if c.cacheOn {
		c.mu.Lock()
		entry, ok := c.cache[key]
		c.mu.Unlock()
		if ok && time.Since(entry.fetched) < c.cacheTTL {
			return entry.txs, nil
		}
	}

	params := url.Values{}
	params.Add("timestamp", fmt.Sprintf("gte:%d.%09d", since.Unix(), since.Nanosecond()))
	params.Add("order", "desc")
	params.Add("limit", strconv.Itoa(c.searchLimit))
	params.Add("result", "success")

	fullURL := c.baseURL + "/transactions?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(1<<(attempt-1))):
			}
		}

		txs, err := c.fetch(ctx, fullURL)
		if err != nil {
			lastErr = err
			if IsTransient(err) {
				c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("url", fullURL).Msg("Ledger search failed, retrying")
				continue
			}
			return nil, err
		}

		if c.cacheOn {
			c.mu.Lock()
			c.cache[key] = cacheEntry{fetched: time.Now(), txs: txs}
			c.pruneLocked()
			c.mu.Unlock()
		}
		return txs, nil
	}

	c.logger.Error().Err(lastErr).Str("url", fullURL).Int("max_retries", c.maxRetries).Msg("Ledger search failed after all retries")
	return nil, fmt.Errorf("ledger search failed after %d retries: %w", c.maxRetries, lastErr)
}

func (c *LedgerClient) fetch(ctx context.Context, fullURL string) ([]domain.ObservedTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var mr mirrorResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	txs := make([]domain.ObservedTransaction, 0, len(mr.Transactions))
	for _, mt := range mr.Transactions {
		txs = append(txs, c.convert(mt))
	}
	return txs, nil
}

func (c *LedgerClient) convert(mt mirrorTransaction) domain.ObservedTransaction {
	tx := domain.ObservedTransaction{
		TransactionID:      mt.TransactionID,
		ConsensusTimestamp: parseConsensusTimestamp(mt.ConsensusTimestamp),
		TransactionHash:    mt.TransactionHash,
		Memo:               decodeMemo(mt.MemoBase64),
		ChargedFee:         mt.ChargedTxFee,
		Result:             mt.Result,
	}
	for _, tr := range mt.Transfers {
		tx.Transfers = append(tx.Transfers, domain.LedgerTransfer{Account: tr.Account, Amount: tr.Amount})
	}
	return tx
}

// pruneLocked drops stale cache entries; callers hold c.mu.
func (c *LedgerClient) pruneLocked() {
	cutoff := time.Now().Add(-2 * c.cacheTTL)
	for k, v := range c.cache {
		if v.fetched.Before(cutoff) {
			delete(c.cache, k)
		}
	}
}

// parseConsensusTimestamp parses the index's "seconds.nanoseconds" form.
func parseConsensusTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nanos int64
	if len(parts) == 2 {
		// Right-pad to nine digits; the index may truncate trailing zeros.
		frac := parts[1]
		if len(frac) > 9 {
			frac = frac[:9]
		}
		for len(frac) < 9 {
			frac += "0"
		}
		nanos, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(secs, nanos).UTC()
}

func decodeMemo(encoded string) string {
	if encoded == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	return string(decoded)
}
