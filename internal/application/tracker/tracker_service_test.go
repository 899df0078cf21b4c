package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

type memStatusRepo struct {
	mu    sync.Mutex
	items map[string]domain.UnifiedPaymentStatus
}

func newMemStatusRepo() *memStatusRepo {
	return &memStatusRepo{items: make(map[string]domain.UnifiedPaymentStatus)}
}

func (r *memStatusRepo) Upsert(ctx context.Context, s domain.UnifiedPaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.PaymentID] = s
	return nil
}

func (r *memStatusRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.UnifiedPaymentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[paymentID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *memStatusRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.UnifiedPaymentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UnifiedPaymentStatus
	for _, s := range r.items {
		if !domain.TerminalStatus(s.Status) && s.UpdatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memStatusRepo) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.UnifiedPaymentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UnifiedPaymentStatus
	for _, s := range r.items {
		if c.Status != "" && s.Status != c.Status {
			continue
		}
		if c.RailType != "" && s.RailType != c.RailType {
			continue
		}
		if c.Customer != "" && s.Customer != c.Customer {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memStatusRepo) ListSince(ctx context.Context, since time.Time) ([]domain.UnifiedPaymentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UnifiedPaymentStatus
	for _, s := range r.items {
		if !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	channel string
	mu      sync.Mutex
	sent    []string
}

func (n *recordingNotifier) Channel() string { return n.channel }

func (n *recordingNotifier) Notify(ctx context.Context, paymentID string, status domain.PaymentStatus, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, string(status))
	return nil
}

func (n *recordingNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func testTrackerConfig() config.TrackerConfig {
	return config.TrackerConfig{
		HistoryLimit:  100,
		HistoryWindow: 30 * 24 * time.Hour,
	}
}

func ledgerPayment(id string, start time.Time) domain.PaymentRequest {
	return domain.PaymentRequest{
		PaymentID:     id,
		Amount:        decimal.NewFromInt(25),
		Currency:      "HBAR",
		CustomerPhone: "254712345678",
		CreatedAt:     start,
	}
}

func TestCreateStatusOpensPipeline(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	repo := newMemStatusRepo()
	svc := New(repo, nil, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))

	status, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusInitiated, status.Status)
	assert.Equal(t, 0, status.Progress.CurrentStep)
	assert.Equal(t, "initiated", status.Progress.StepName)
	assert.Len(t, status.Progress.RemainingSteps, 5)
	assert.Len(t, status.History, 1)

	// Persisted through the store, not just cached.
	stored, err := repo.GetByPaymentID(context.Background(), "pay-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestUpdateStatusAdvancesAndRecordsHistory(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusPending, "watcher", "monitoring started"))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusConfirmed, "watcher", "transaction validated"))

	status, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, status.Status)
	assert.Equal(t, 2, status.Progress.CurrentStep)
	assert.Equal(t, "confirmed", status.Progress.StepName)
	assert.Len(t, status.Progress.CompletedSteps, 2)
	assert.Len(t, status.History, 3)

	last := status.History[len(status.History)-1]
	assert.Equal(t, domain.PaymentStatusPending, last.PreviousStatus)
	assert.Equal(t, domain.PaymentStatusConfirmed, last.NewStatus)
	assert.Equal(t, "watcher", last.Source)
}

func TestProgressPointerNeverRegresses(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusConfirmed, "watcher", ""))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusPending, "replay", "late update"))

	status, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	// The late transition is recorded but the pointer stays put.
	assert.Equal(t, domain.PaymentStatusPending, status.Status)
	assert.Equal(t, 2, status.Progress.CurrentStep)
}

func TestFailureFreezesPointer(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusProcessing, "orchestrator", ""))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusFailed, "settlement", "payout rejected"))

	status, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, status.Status)
	assert.Equal(t, 3, status.Progress.CurrentStep, "pointer frozen where the pipeline stalled")
}

func TestTerminalStatusRejectsTransitions(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusFailed, "watcher", "timed out"))

	err := svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusCompleted, "orchestrator", "")
	assert.ErrorIs(t, err, ErrTerminalStatus)
}

func TestUpdateUnknownPayment(t *testing.T) {
	m := scheduler.NewManual(time.Unix(1_700_000_000, 0))
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	err := svc.UpdateStatus(context.Background(), "nope", domain.PaymentStatusPending, "watcher", "")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestHistoryPrunedByCount(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	cfg := testTrackerConfig()
	cfg.HistoryLimit = 5
	svc := New(newMemStatusRepo(), nil, cfg, m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	// Bounce between two non-positional updates to grow the history.
	for i := 0; i < 10; i++ {
		require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusPending, "watcher", "tick"))
		m.Advance(time.Second)
	}

	history, err := svc.GetHistory(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Len(t, history, 5)
	// The newest entries are the ones kept.
	assert.Equal(t, start.Add(9*time.Second), history[len(history)-1].Timestamp)
}

func TestHistoryPrunedByWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	cfg := testTrackerConfig()
	cfg.HistoryWindow = time.Hour
	svc := New(newMemStatusRepo(), nil, cfg, m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusPending, "watcher", "old"))

	m.Advance(2 * time.Hour)
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusConfirmed, "watcher", "fresh"))

	history, err := svc.GetHistory(context.Background(), "pay-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "fresh", history[0].Reason)
}

func TestNotificationsFollowConfig(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	sms := &recordingNotifier{channel: "sms"}
	webhook := &recordingNotifier{channel: "webhook"}
	svc := New(newMemStatusRepo(), []interfaces.Notifier{sms, webhook}, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	svc.ConfigureNotifications(domain.NotificationConfig{
		PaymentID: "pay-1",
		Triggers:  []domain.NotificationTrigger{domain.TriggerCompletion},
		Channels:  []string{"sms"},
	})

	// Mid-pipeline transitions don't match the completion trigger.
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusConfirmed, "watcher", ""))
	assert.Equal(t, 0, sms.sentCount())

	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusCompleted, "orchestrator", ""))
	assert.Equal(t, 1, sms.sentCount())
	assert.Equal(t, 0, webhook.sentCount(), "unconfigured channels stay silent")
}

func TestBroadcastHook(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	var got []domain.PaymentStatus
	svc.SetBroadcast(func(s domain.UnifiedPaymentStatus) {
		got = append(got, s.Status)
	})

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))
	require.NoError(t, svc.UpdateStatus(context.Background(), "pay-1", domain.PaymentStatusPending, "watcher", ""))

	assert.Equal(t, []domain.PaymentStatus{domain.PaymentStatusInitiated, domain.PaymentStatusPending}, got)
}

func TestMetadataMutations(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment("pay-1", start), domain.RailLedger))

	require.NoError(t, svc.AddBlocker(context.Background(), "pay-1", domain.Blocker{
		Type:     "watch_timeout",
		Severity: domain.BlockerSeverityCritical,
	}))
	require.NoError(t, svc.AddRelated(context.Background(), "pay-1", domain.RelatedPayment{
		ID:       "stl-1",
		Relation: domain.RelationSettlement,
		Status:   "initiated",
	}))
	// Re-adding the same related id updates in place.
	require.NoError(t, svc.AddRelated(context.Background(), "pay-1", domain.RelatedPayment{
		ID:       "stl-1",
		Relation: domain.RelationSettlement,
		Status:   "completed",
	}))
	require.NoError(t, svc.SetFees(context.Background(), "pay-1", domain.FeeBreakdown{
		ProcessingFee: decimal.NewFromInt(25),
		Currency:      "KES",
	}))

	status, err := svc.GetStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	require.Len(t, status.Progress.Blockers, 1)
	require.Len(t, status.Related, 1)
	assert.Equal(t, "completed", status.Related[0].Status)
	assert.Equal(t, "KES", status.Metadata.Fees.Currency)
}

func TestAnalyticsAggregation(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	m := scheduler.NewManual(start)
	svc := New(newMemStatusRepo(), nil, testTrackerConfig(), m, zerolog.Nop())

	for i, status := range []domain.PaymentStatus{
		domain.PaymentStatusCompleted,
		domain.PaymentStatusCompleted,
		domain.PaymentStatusFailed,
		domain.PaymentStatusPending,
	} {
		id := string(rune('a' + i))
		require.NoError(t, svc.CreateStatus(context.Background(), ledgerPayment(id, start), domain.RailLedger))
		if status != domain.PaymentStatusInitiated {
			require.NoError(t, svc.UpdateStatus(context.Background(), id, status, "test", ""))
		}
	}

	analytics, err := svc.GetAnalytics(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, analytics.TotalPayments)
	assert.Equal(t, 2, analytics.ByStatus[domain.PaymentStatusCompleted])
	assert.Equal(t, 1, analytics.ByStatus[domain.PaymentStatusFailed])
	assert.Equal(t, 4, analytics.ByRail[domain.RailLedger])
	assert.InDelta(t, 0.5, analytics.SuccessRate, 1e-9)
	assert.True(t, analytics.Volume["HBAR"].Equal(decimal.NewFromInt(100)))
}
