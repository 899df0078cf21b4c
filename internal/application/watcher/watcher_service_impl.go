package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/currency"
	"github.com/kitepay/railbridge/pkg/metrics"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

type watchSession struct {
	session *domain.MonitoringSession
	payment domain.PaymentRequest
	cancel  context.CancelFunc
}

type watcherService struct {
	ledger        interfaces.LedgerSearchClient
	config        config.WatcherConfig
	sched         scheduler.Scheduler
	logger        zerolog.Logger
	currencyUtils *currency.CurrencyUtils

	mu         sync.Mutex
	active     map[string]*watchSession // keyed by payment id
	bySession  map[string]string        // session id -> payment id

	confirmations chan domain.PaymentConfirmedEvent
	timeouts      chan domain.WatchTimedOutEvent
}

func New(
	ledger interfaces.LedgerSearchClient,
	cfg config.WatcherConfig,
	sched scheduler.Scheduler,
	logger zerolog.Logger,
) IWatcherService {
	return &watcherService{
		ledger:        ledger,
		config:        cfg,
		sched:         sched,
		logger:        logger.With().Str("component", "watcher").Logger(),
		currencyUtils: currency.NewCurrencyUtils(),
		active:        make(map[string]*watchSession),
		bySession:     make(map[string]string),
		confirmations: make(chan domain.PaymentConfirmedEvent, 64),
		timeouts:      make(chan domain.WatchTimedOutEvent, 64),
	}
}

func (s *watcherService) Confirmations() <-chan domain.PaymentConfirmedEvent {
	return s.confirmations
}

func (s *watcherService) Timeouts() <-chan domain.WatchTimedOutEvent {
	return s.timeouts
}

func (s *watcherService) StartWatching(ctx context.Context, payment domain.PaymentRequest) (string, error) {
	now := s.sched.Now()

	deadline := now.Add(s.config.WatchTimeout)
	if !payment.ExpiresAt.IsZero() && payment.ExpiresAt.Before(deadline) {
		deadline = payment.ExpiresAt
	}

	session := &domain.MonitoringSession{
		SessionID: uuid.New().String(),
		PaymentID: payment.PaymentID,
		Status:    domain.SessionStatusActive,
		Deadline:  deadline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.AppendEvent(domain.SessionEventStarted, "", now)

	s.mu.Lock()
	if existing, ok := s.active[payment.PaymentID]; ok && existing.session.Status == domain.SessionStatusActive {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrSessionExists, payment.PaymentID)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ws := &watchSession{session: session, payment: payment, cancel: cancel}
	s.active[payment.PaymentID] = ws
	s.bySession[session.SessionID] = payment.PaymentID
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.logger.Info().
		Str("session_id", session.SessionID).
		Str("payment_id", payment.PaymentID).
		Time("deadline", deadline).
		Msg("Started watching for ledger settlement")

	go s.run(watchCtx, ws)

	return session.SessionID, nil
}

func (s *watcherService) run(ctx context.Context, ws *watchSession) {
	ticker := s.sched.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if done := s.pollOnce(ctx, ws); done {
				return
			}
		}
	}
}

// pollOnce runs one poll tick and reports whether the session reached a
// terminal state.
func (s *watcherService) pollOnce(ctx context.Context, ws *watchSession) bool {
	now := s.sched.Now()

	s.mu.Lock()
	if ws.session.Status != domain.SessionStatusActive {
		s.mu.Unlock()
		return true
	}
	ws.session.RetryCount++
	ws.session.LastChecked = now
	ws.session.AppendEvent(domain.SessionEventPolling, "", now)

	budgetExceeded := s.config.MaxPolls > 0 && ws.session.RetryCount > s.config.MaxPolls
	expired := now.After(ws.session.Deadline)
	if expired || budgetExceeded {
		reason := "watch deadline exceeded"
		if budgetExceeded {
			reason = "poll budget exhausted"
		}
		ws.session.Status = domain.SessionStatusTimeout
		ws.session.AppendEvent(domain.SessionEventTimeout, reason, now)
		s.removeLocked(ws)
		s.mu.Unlock()

		metrics.PollTicks.WithLabelValues("timeout").Inc()
		s.logger.Warn().
			Str("session_id", ws.session.SessionID).
			Str("payment_id", ws.payment.PaymentID).
			Str("reason", reason).
			Msg("Monitoring session timed out")

		s.timeouts <- domain.WatchTimedOutEvent{
			Payment:   ws.payment,
			SessionID: ws.session.SessionID,
			Reason:    reason,
			At:        now,
		}
		ws.cancel()
		return true
	}
	s.mu.Unlock()

	since := now.Add(-s.config.LookbackWindow)
	transactions, err := s.ledger.SearchSince(ctx, since)
	if err != nil {
		// Transient search failures never terminate the session; the next
		// tick tries again.
		metrics.PollTicks.WithLabelValues("error").Inc()
		s.logger.Warn().
			Str("session_id", ws.session.SessionID).
			Str("payment_id", ws.payment.PaymentID).
			Err(err).
			Msg("Ledger search failed, will retry on next tick")

		s.mu.Lock()
		ws.session.AppendEvent(domain.SessionEventError, err.Error(), now)
		s.mu.Unlock()
		return false
	}

	for _, tx := range transactions {
		if tx.Memo == "" || !memoContainsTag(tx.Memo, ws.payment.CorrelationTag) {
			continue
		}

		s.mu.Lock()
		ws.session.AppendEvent(domain.SessionEventTransactionFound, tx.TransactionID, now)
		s.mu.Unlock()

		validation := s.validate(ws.payment, tx)
		if !validation.OverallValid {
			s.mu.Lock()
			ws.session.AppendEvent(domain.SessionEventValidationFailed, tx.TransactionID, now)
			s.mu.Unlock()
			s.logger.Info().
				Str("payment_id", ws.payment.PaymentID).
				Str("transaction_id", tx.TransactionID).
				Bool("memo_match", validation.MemoMatch).
				Bool("recipient_match", validation.RecipientMatch).
				Bool("amount_match", validation.AmountMatch).
				Bool("timing_valid", validation.TimingValid).
				Bool("fee_sane", validation.FeeSane).
				Msg("Candidate transaction failed validation")
			continue
		}

		// First valid candidate wins. The status check under the lock makes
		// the confirmation at-most-once even with concurrent ticks.
		s.mu.Lock()
		if ws.session.Status != domain.SessionStatusActive {
			s.mu.Unlock()
			return true
		}
		ws.session.Status = domain.SessionStatusCompleted
		ws.session.AppendEvent(domain.SessionEventValidationSuccess, tx.TransactionID, now)
		s.removeLocked(ws)
		s.mu.Unlock()

		metrics.PollTicks.WithLabelValues("confirmed").Inc()
		metrics.Confirmations.Inc()
		s.logger.Info().
			Str("session_id", ws.session.SessionID).
			Str("payment_id", ws.payment.PaymentID).
			Str("transaction_id", tx.TransactionID).
			Msg("Ledger settlement confirmed")

		s.confirmations <- domain.PaymentConfirmedEvent{
			Payment:     ws.payment,
			Transaction: tx,
			Validation:  validation,
			ConfirmedAt: now,
		}
		ws.cancel()
		return true
	}

	metrics.PollTicks.WithLabelValues("no_match").Inc()
	return false
}

func (s *watcherService) StopWatching(sessionID string, status domain.SessionStatus) {
	s.mu.Lock()
	paymentID, ok := s.bySession[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	ws := s.active[paymentID]
	if ws == nil || ws.session.Status != domain.SessionStatusActive {
		s.mu.Unlock()
		return
	}
	ws.session.Status = status
	ws.session.AppendEvent(domain.SessionEventError, "stopped: "+string(status), s.sched.Now())
	s.removeLocked(ws)
	s.mu.Unlock()

	ws.cancel()
	s.logger.Info().
		Str("session_id", sessionID).
		Str("payment_id", paymentID).
		Str("status", string(status)).
		Msg("Monitoring session stopped")
}

func (s *watcherService) StopWatchingPayment(paymentID string, status domain.SessionStatus) {
	s.mu.Lock()
	ws, ok := s.active[paymentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	sessionID := ws.session.SessionID
	s.mu.Unlock()
	s.StopWatching(sessionID, status)
}

func (s *watcherService) Session(paymentID string) (domain.MonitoringSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.active[paymentID]
	if !ok {
		return domain.MonitoringSession{}, false
	}
	return *ws.session, true
}

func (s *watcherService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// removeLocked drops the session from the active set; callers hold s.mu.
func (s *watcherService) removeLocked(ws *watchSession) {
	delete(s.active, ws.payment.PaymentID)
	delete(s.bySession, ws.session.SessionID)
	metrics.ActiveSessions.Dec()
}
