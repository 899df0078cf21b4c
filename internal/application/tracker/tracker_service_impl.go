package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/internal/repositories/statusrepo"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/metrics"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

const defaultSearchLimit = 100

type trackerService struct {
	statusRepo statusrepo.IStatusRepository
	notifiers  []interfaces.Notifier
	config     config.TrackerConfig
	sched      scheduler.Scheduler
	logger     zerolog.Logger

	mu        sync.Mutex
	cache     map[string]*domain.UnifiedPaymentStatus
	notifyCfg map[string]domain.NotificationConfig
	broadcast func(domain.UnifiedPaymentStatus)
}

func New(
	statusRepo statusrepo.IStatusRepository,
	notifiers []interfaces.Notifier,
	cfg config.TrackerConfig,
	sched scheduler.Scheduler,
	logger zerolog.Logger,
) ITrackerService {
	return &trackerService{
		statusRepo: statusRepo,
		notifiers:  notifiers,
		config:     cfg,
		sched:      sched,
		logger:     logger.With().Str("component", "tracker").Logger(),
		cache:      make(map[string]*domain.UnifiedPaymentStatus),
		notifyCfg:  make(map[string]domain.NotificationConfig),
	}
}

func (t *trackerService) SetBroadcast(fn func(domain.UnifiedPaymentStatus)) {
	t.mu.Lock()
	t.broadcast = fn
	t.mu.Unlock()
}

func (t *trackerService) ConfigureNotifications(cfg domain.NotificationConfig) {
	t.mu.Lock()
	t.notifyCfg[cfg.PaymentID] = cfg
	t.mu.Unlock()
}

func (t *trackerService) CreateStatus(ctx context.Context, payment domain.PaymentRequest, rail domain.RailType) error {
	now := t.sched.Now()
	steps := stepsForRail(rail)

	remaining := make([]string, 0, len(steps)-1)
	for _, s := range steps[1:] {
		remaining = append(remaining, s.name)
	}

	status := &domain.UnifiedPaymentStatus{
		PaymentID: payment.PaymentID,
		RailType:  rail,
		Status:    domain.PaymentStatusInitiated,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Customer:  payment.CustomerPhone,
		Progress: domain.Progress{
			CurrentStep:     0,
			StepName:        steps[0].name,
			StepDescription: steps[0].description,
			RemainingSteps:  remaining,
		},
		History: []domain.PaymentStatusUpdate{{
			PreviousStatus: "",
			NewStatus:      domain.PaymentStatusInitiated,
			Source:         "tracker",
			Reason:         "status record created",
			Timestamp:      now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	t.cache[payment.PaymentID] = status
	snapshot := *status
	t.mu.Unlock()

	metrics.StatusTransitions.WithLabelValues(string(domain.PaymentStatusInitiated)).Inc()
	if err := t.statusRepo.Upsert(ctx, snapshot); err != nil {
		return err
	}
	t.emit(snapshot)
	return nil
}

func (t *trackerService) UpdateStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, source, reason string) error {
	now := t.sched.Now()

	t.mu.Lock()
	current, err := t.loadLocked(ctx, paymentID)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if domain.TerminalStatus(current.Status) {
		prev := current.Status
		t.mu.Unlock()
		t.logger.Warn().
			Str("payment_id", paymentID).
			Str("current", string(prev)).
			Str("requested", string(status)).
			Msg("Rejected transition out of terminal status")
		return fmt.Errorf("%w: %s", ErrTerminalStatus, prev)
	}

	update := domain.PaymentStatusUpdate{
		PreviousStatus: current.Status,
		NewStatus:      status,
		Source:         source,
		Reason:         reason,
		Timestamp:      now,
	}
	current.Status = status
	current.History = pruneHistory(append(current.History, update), t.config.HistoryLimit, now.Add(-t.config.HistoryWindow))
	t.advanceLocked(current, status, now)
	current.UpdatedAt = now
	snapshot := *current
	t.mu.Unlock()

	metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
	t.logger.Info().
		Str("payment_id", paymentID).
		Str("from", string(update.PreviousStatus)).
		Str("to", string(status)).
		Str("source", source).
		Msg("Payment status transition")

	if err := t.statusRepo.Upsert(ctx, snapshot); err != nil {
		return err
	}
	t.emit(snapshot)
	t.notify(ctx, snapshot, update)
	return nil
}

// advanceLocked moves the progress pointer forward, never back. Callers
// hold t.mu.
func (t *trackerService) advanceLocked(s *domain.UnifiedPaymentStatus, status domain.PaymentStatus, now time.Time) {
	steps := stepsForRail(s.RailType)
	target := stepForStatus(s.RailType, status)
	if target < 0 || target <= s.Progress.CurrentStep {
		return
	}

	for i := s.Progress.CurrentStep; i < target; i++ {
		s.Progress.CompletedSteps = append(s.Progress.CompletedSteps, domain.CompletedStep{
			Name:        steps[i].name,
			Description: steps[i].description,
			Outcome:     "ok",
			Duration:    now.Sub(s.UpdatedAt),
			CompletedAt: now,
		})
	}
	s.Progress.CurrentStep = target
	s.Progress.StepName = steps[target].name
	s.Progress.StepDescription = steps[target].description
	s.Progress.RemainingSteps = nil
	for _, step := range steps[target+1:] {
		s.Progress.RemainingSteps = append(s.Progress.RemainingSteps, step.name)
	}
}

// pruneHistory enforces the retention policy on append: drop entries older
// than the cutoff, then cap at limit keeping the newest.
func pruneHistory(history []domain.PaymentStatusUpdate, limit int, cutoff time.Time) []domain.PaymentStatusUpdate {
	kept := history[:0]
	for _, h := range history {
		if !h.Timestamp.Before(cutoff) {
			kept = append(kept, h)
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}

func (t *trackerService) AddBlocker(ctx context.Context, paymentID string, blocker domain.Blocker) error {
	return t.mutate(ctx, paymentID, func(s *domain.UnifiedPaymentStatus) {
		s.Progress.Blockers = append(s.Progress.Blockers, blocker)
	})
}

func (t *trackerService) AddRelated(ctx context.Context, paymentID string, related domain.RelatedPayment) error {
	return t.mutate(ctx, paymentID, func(s *domain.UnifiedPaymentStatus) {
		for i, existing := range s.Related {
			if existing.ID == related.ID {
				s.Related[i] = related
				return
			}
		}
		s.Related = append(s.Related, related)
	})
}

func (t *trackerService) SetFees(ctx context.Context, paymentID string, fees domain.FeeBreakdown) error {
	return t.mutate(ctx, paymentID, func(s *domain.UnifiedPaymentStatus) {
		s.Metadata.Fees = fees
	})
}

func (t *trackerService) mutate(ctx context.Context, paymentID string, fn func(*domain.UnifiedPaymentStatus)) error {
	t.mu.Lock()
	current, err := t.loadLocked(ctx, paymentID)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	fn(current)
	current.UpdatedAt = t.sched.Now()
	snapshot := *current
	t.mu.Unlock()

	if err := t.statusRepo.Upsert(ctx, snapshot); err != nil {
		return err
	}
	t.emit(snapshot)
	return nil
}

func (t *trackerService) GetStatus(ctx context.Context, paymentID string) (*domain.UnifiedPaymentStatus, error) {
	t.mu.Lock()
	if s, ok := t.cache[paymentID]; ok {
		snapshot := *s
		t.mu.Unlock()
		return &snapshot, nil
	}
	t.mu.Unlock()

	stored, err := t.statusRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, paymentID)
	}
	return stored, nil
}

func (t *trackerService) GetHistory(ctx context.Context, paymentID string) ([]domain.PaymentStatusUpdate, error) {
	status, err := t.GetStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return status.History, nil
}

func (t *trackerService) SearchPayments(ctx context.Context, criteria domain.SearchCriteria) ([]domain.UnifiedPaymentStatus, error) {
	if criteria.Limit <= 0 || criteria.Limit > defaultSearchLimit {
		criteria.Limit = defaultSearchLimit
	}
	return t.statusRepo.Search(ctx, criteria)
}

func (t *trackerService) GetAnalytics(ctx context.Context, window time.Duration) (*domain.Analytics, error) {
	statuses, err := t.statusRepo.ListSince(ctx, t.sched.Now().Add(-window))
	if err != nil {
		return nil, err
	}

	analytics := &domain.Analytics{
		Window:        window,
		TotalPayments: len(statuses),
		ByStatus:      make(map[domain.PaymentStatus]int),
		ByRail:        make(map[domain.RailType]int),
		Volume:        make(map[string]decimal.Decimal),
	}

	var completed int
	for _, s := range statuses {
		analytics.ByStatus[s.Status]++
		analytics.ByRail[s.RailType]++
		analytics.Volume[s.Currency] = analytics.Volume[s.Currency].Add(s.Amount)
		if s.Status == domain.PaymentStatusCompleted {
			completed++
		}
	}
	if len(statuses) > 0 {
		analytics.SuccessRate = float64(completed) / float64(len(statuses))
	}
	return analytics, nil
}

// loadLocked resolves a payment's status through the cache, falling back to
// the store. Callers hold t.mu.
func (t *trackerService) loadLocked(ctx context.Context, paymentID string) (*domain.UnifiedPaymentStatus, error) {
	if s, ok := t.cache[paymentID]; ok {
		return s, nil
	}
	stored, err := t.statusRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, paymentID)
	}
	t.cache[paymentID] = stored
	return stored, nil
}

func (t *trackerService) emit(s domain.UnifiedPaymentStatus) {
	t.mu.Lock()
	fn := t.broadcast
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// notify fans a transition out to the channels the payment's notification
// config selects. Delivery failures are logged per channel, never fatal.
func (t *trackerService) notify(ctx context.Context, s domain.UnifiedPaymentStatus, update domain.PaymentStatusUpdate) {
	t.mu.Lock()
	cfg, ok := t.notifyCfg[s.PaymentID]
	t.mu.Unlock()
	if !ok {
		return
	}

	trigger := domain.TriggerStatusChange
	switch {
	case s.Status == domain.PaymentStatusCompleted:
		trigger = domain.TriggerCompletion
	case s.Status == domain.PaymentStatusFailed:
		trigger = domain.TriggerError
	}

	wanted := false
	for _, tr := range cfg.Triggers {
		if tr == trigger || tr == domain.TriggerStatusChange {
			wanted = true
			break
		}
	}
	if !wanted {
		return
	}

	message := fmt.Sprintf("Payment %s moved from %s to %s", s.PaymentID, update.PreviousStatus, update.NewStatus)
	for _, notifier := range t.notifiers {
		if !containsChannel(cfg.Channels, notifier.Channel()) {
			continue
		}
		if err := notifier.Notify(ctx, s.PaymentID, s.Status, message); err != nil {
			t.logger.Warn().
				Err(err).
				Str("payment_id", s.PaymentID).
				Str("channel", notifier.Channel()).
				Msg("Notification delivery failed")
			continue
		}
		t.logger.Info().
			Str("payment_id", s.PaymentID).
			Str("channel", notifier.Channel()).
			Str("trigger", string(trigger)).
			Msg("Notification delivered")
	}
}

func containsChannel(channels []string, channel string) bool {
	for _, c := range channels {
		if c == channel {
			return true
		}
	}
	return false
}
