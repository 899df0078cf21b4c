package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

type fakeLedger struct {
	mu    sync.Mutex
	txs   []domain.ObservedTransaction
	err   error
	calls int
}

func (f *fakeLedger) SearchSince(ctx context.Context, since time.Time) ([]domain.ObservedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.txs, nil
}

func (f *fakeLedger) set(txs []domain.ObservedTransaction, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = txs
	f.err = err
}

func testWatcherConfig() config.WatcherConfig {
	return config.WatcherConfig{
		PollInterval:    10 * time.Second,
		WatchTimeout:    5 * time.Minute,
		MaxPolls:        30,
		LookbackWindow:  30 * time.Minute,
		AmountTolerance: 0.02,
		MaxFeeSubunits:  10_000_000,
	}
}

func testPayment(start time.Time) domain.PaymentRequest {
	return domain.PaymentRequest{
		PaymentID:        "pay-1",
		Amount:           decimal.NewFromInt(25),
		Currency:         "HBAR",
		RecipientAccount: "0.0.5005",
		CorrelationTag:   "TAG-1",
		CustomerPhone:    "254712345678",
		ExpiresAt:        start.Add(time.Hour),
		CreatedAt:        start,
	}
}

func matchingTransaction(at time.Time) domain.ObservedTransaction {
	return domain.ObservedTransaction{
		TransactionID:      "0.0.1111-1700000000-000000001",
		ConsensusTimestamp: at.Add(30 * time.Second),
		Transfers: []domain.LedgerTransfer{
			{Account: "0.0.1111", Amount: -2_500_000_000},
			{Account: "0.0.5005", Amount: 2_500_000_000},
		},
		Memo:       "order TAG-1 settlement",
		ChargedFee: 500_000,
		Result:     "SUCCESS",
	}
}

// awaitEvent delivers ticks until the channel yields, failing the test if
// nothing arrives.
func awaitEvent[T any](t *testing.T, m *scheduler.Manual, ch <-chan T) T {
	t.Helper()
	for i := 0; i < 50; i++ {
		m.TickAll()
		select {
		case ev := <-ch:
			return ev
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("timed out waiting for event")
	var zero T
	return zero
}

func TestStartWatchingRejectsDuplicate(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(&fakeLedger{}, testWatcherConfig(), m, zerolog.Nop())

	_, err := svc.StartWatching(context.Background(), testPayment(start))
	require.NoError(t, err)

	_, err = svc.StartWatching(context.Background(), testPayment(start))
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestConfirmationFlow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	ledger := &fakeLedger{}
	ledger.set([]domain.ObservedTransaction{matchingTransaction(start)}, nil)
	svc := New(ledger, testWatcherConfig(), m, zerolog.Nop())

	payment := testPayment(start)
	sessionID, err := svc.StartWatching(context.Background(), payment)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	ev := awaitEvent(t, m, svc.Confirmations())
	assert.Equal(t, payment.PaymentID, ev.Payment.PaymentID)
	assert.Equal(t, "0.0.1111-1700000000-000000001", ev.Transaction.TransactionID)
	assert.True(t, ev.Validation.OverallValid)
	assert.Equal(t, 0, svc.ActiveCount())

	// Further ticks must not produce a second confirmation.
	m.TickAll()
	select {
	case <-svc.Confirmations():
		t.Fatal("unexpected second confirmation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchTimeoutOnDeadline(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(&fakeLedger{}, testWatcherConfig(), m, zerolog.Nop())

	payment := testPayment(start)
	sessionID, err := svc.StartWatching(context.Background(), payment)
	require.NoError(t, err)

	m.Advance(5*time.Minute + time.Second)
	ev := awaitEvent(t, m, svc.Timeouts())
	assert.Equal(t, payment.PaymentID, ev.Payment.PaymentID)
	assert.Equal(t, sessionID, ev.SessionID)
	assert.Equal(t, 0, svc.ActiveCount())
}

func TestDeadlineClampedToExpiry(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(&fakeLedger{}, testWatcherConfig(), m, zerolog.Nop())

	payment := testPayment(start)
	payment.ExpiresAt = start.Add(time.Minute)
	_, err := svc.StartWatching(context.Background(), payment)
	require.NoError(t, err)

	// Past the order expiry but well inside the default watch timeout.
	m.Advance(time.Minute + time.Second)
	ev := awaitEvent(t, m, svc.Timeouts())
	assert.Equal(t, payment.PaymentID, ev.Payment.PaymentID)
}

func TestSearchErrorsAreNotTerminal(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	ledger := &fakeLedger{}
	ledger.set(nil, errors.New("upstream 503"))
	svc := New(ledger, testWatcherConfig(), m, zerolog.Nop())

	payment := testPayment(start)
	_, err := svc.StartWatching(context.Background(), payment)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		m.TickAll()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, svc.ActiveCount())

	// Recovery on a later tick still confirms.
	ledger.set([]domain.ObservedTransaction{matchingTransaction(start)}, nil)
	ev := awaitEvent(t, m, svc.Confirmations())
	assert.Equal(t, payment.PaymentID, ev.Payment.PaymentID)
}

func TestInvalidCandidateKeepsWatching(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	ledger := &fakeLedger{}

	underpaid := matchingTransaction(start)
	underpaid.Transfers = []domain.LedgerTransfer{
		{Account: "0.0.5005", Amount: 2_400_000_000},
	}
	ledger.set([]domain.ObservedTransaction{underpaid}, nil)
	svc := New(ledger, testWatcherConfig(), m, zerolog.Nop())

	_, err := svc.StartWatching(context.Background(), testPayment(start))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		m.TickAll()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, svc.ActiveCount())
	select {
	case <-svc.Confirmations():
		t.Fatal("underpaid transaction must not confirm")
	default:
	}
}

func TestPollBudgetExhaustion(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	cfg := testWatcherConfig()
	cfg.MaxPolls = 2
	svc := New(&fakeLedger{}, cfg, m, zerolog.Nop())

	_, err := svc.StartWatching(context.Background(), testPayment(start))
	require.NoError(t, err)

	ev := awaitEvent(t, m, svc.Timeouts())
	assert.Contains(t, ev.Reason, "budget")
}

func TestStopWatchingIdempotent(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(&fakeLedger{}, testWatcherConfig(), m, zerolog.Nop())

	payment := testPayment(start)
	sessionID, err := svc.StartWatching(context.Background(), payment)
	require.NoError(t, err)

	svc.StopWatching(sessionID, domain.SessionStatusCancelled)
	assert.Equal(t, 0, svc.ActiveCount())

	// Repeat stops and unknown ids are no-ops.
	svc.StopWatching(sessionID, domain.SessionStatusCancelled)
	svc.StopWatching("no-such-session", domain.SessionStatusCancelled)
	svc.StopWatchingPayment(payment.PaymentID, domain.SessionStatusCancelled)
	assert.Equal(t, 0, svc.ActiveCount())

	// A fresh watch for the same payment is allowed after cancellation.
	_, err = svc.StartWatching(context.Background(), payment)
	assert.NoError(t, err)
}

func TestSessionSnapshot(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(&fakeLedger{}, testWatcherConfig(), m, zerolog.Nop())

	payment := testPayment(start)
	sessionID, err := svc.StartWatching(context.Background(), payment)
	require.NoError(t, err)

	session, ok := svc.Session(payment.PaymentID)
	require.True(t, ok)
	assert.Equal(t, sessionID, session.SessionID)
	assert.Equal(t, domain.SessionStatusActive, session.Status)

	_, ok = svc.Session("unknown")
	assert.False(t, ok)
}
