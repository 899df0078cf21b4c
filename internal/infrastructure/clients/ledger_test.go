package clients

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitepay/railbridge/pkg/config"
)

const mirrorBody = `{
	"transactions": [
		{
			"transaction_id": "0.0.1111-1700000000-000000001",
			"consensus_timestamp": "1700000030.123456789",
			"transaction_hash": "q8brP1cp",
			"transfers": [
				{"account": "0.0.1111", "amount": -2500000000},
				{"account": "0.0.5005", "amount": 2500000000},
				{"account": "0.0.98", "amount": 500000}
			],
			"memo_base64": "b3JkZXIgVEFHLTEgc2V0dGxlbWVudA==",
			"result": "SUCCESS",
			"charged_tx_fee": 500000
		}
	]
}`

func testLedgerConfig(baseURL string) config.LedgerConfig {
	return config.LedgerConfig{
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Millisecond,
		SearchLimit:  100,
		CacheTTL:     time.Minute,
		CacheEnabled: false,
	}
}

func TestSearchSince(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(mirrorBody))
	}))
	defer server.Close()

	client := NewLedgerClient(testLedgerConfig(server.URL), zerolog.Nop())
	since := time.Unix(1_700_000_000, 500_000_000)

	txs, err := client.SearchSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "0.0.1111-1700000000-000000001", tx.TransactionID)
	assert.Equal(t, time.Unix(1_700_000_030, 123_456_789).UTC(), tx.ConsensusTimestamp)
	assert.Equal(t, "order TAG-1 settlement", tx.Memo)
	assert.Equal(t, int64(500_000), tx.ChargedFee)
	require.Len(t, tx.Transfers, 3)
	assert.Equal(t, "0.0.5005", tx.Transfers[1].Account)
	assert.Equal(t, int64(2_500_000_000), tx.Transfers[1].Amount)

	query := gotQuery.Load().(url.Values)
	assert.Equal(t, "gte:1700000000.500000000", query.Get("timestamp"))
	assert.Equal(t, "desc", query.Get("order"))
	assert.Equal(t, "100", query.Get("limit"))
	assert.Equal(t, "success", query.Get("result"))
}

func TestSearchSinceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(mirrorBody))
	}))
	defer server.Close()

	client := NewLedgerClient(testLedgerConfig(server.URL), zerolog.Nop())
	txs, err := client.SearchSince(context.Background(), time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchSinceGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewLedgerClient(testLedgerConfig(server.URL), zerolog.Nop())
	_, err := client.SearchSince(context.Background(), time.Unix(1_700_000_000, 0))
	require.Error(t, err)
	// Initial attempt plus the configured retries.
	assert.Equal(t, int32(4), calls.Load())
}

func TestSearchSinceClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewLedgerClient(testLedgerConfig(server.URL), zerolog.Nop())
	_, err := client.SearchSince(context.Background(), time.Unix(1_700_000_000, 0))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
}

func TestSearchSinceCachesBySecond(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(mirrorBody))
	}))
	defer server.Close()

	cfg := testLedgerConfig(server.URL)
	cfg.CacheEnabled = true
	client := NewLedgerClient(cfg, zerolog.Nop())

	since := time.Unix(1_700_000_000, 0)
	_, err := client.SearchSince(context.Background(), since)
	require.NoError(t, err)
	_, err = client.SearchSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup served from cache")

	_, err = client.SearchSince(context.Background(), since.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "different since misses the cache")
}

func TestParseConsensusTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"full precision", "1700000000.123456789", time.Unix(1_700_000_000, 123_456_789).UTC()},
		{"truncated fraction right-padded", "1700000000.5", time.Unix(1_700_000_000, 500_000_000).UTC()},
		{"no fraction", "1700000000", time.Unix(1_700_000_000, 0).UTC()},
		{"overlong fraction truncated", "1700000000.1234567891", time.Unix(1_700_000_000, 123_456_789).UTC()},
		{"garbage", "not-a-timestamp", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseConsensusTimestamp(tt.in))
		})
	}
}

func TestDecodeMemo(t *testing.T) {
	assert.Equal(t, "order TAG-1 settlement", decodeMemo(base64.StdEncoding.EncodeToString([]byte("order TAG-1 settlement"))))
	assert.Equal(t, "", decodeMemo(""))
	assert.Equal(t, "", decodeMemo("%%%not-base64%%%"))
}
