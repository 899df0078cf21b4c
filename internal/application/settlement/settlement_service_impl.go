package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/internal/repositories/auditrepo"
	"github.com/kitepay/railbridge/internal/repositories/settlementrepo"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/currency"
	"github.com/kitepay/railbridge/pkg/metrics"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

const timeoutReasonCode = "provider.timeout"

type activeSettlement struct {
	result     *domain.SettlementResult
	request    domain.SettlementRequest
	retryTimer scheduler.Timer
}

type settlementService struct {
	payout         interfaces.PayoutClient
	settlementRepo settlementrepo.ISettlementRepository
	auditRepo      auditrepo.IAuditRepository
	config         config.SettlementConfig
	sched          scheduler.Scheduler
	logger         zerolog.Logger
	currencyUtils  *currency.CurrencyUtils

	mu             sync.Mutex
	active         map[string]*activeSettlement // keyed by settlement id
	byConversation map[string]string            // conversation id -> settlement id

	completed chan domain.SettlementCompletedEvent
	failures  chan domain.SettlementFailedEvent
}

func New(
	payout interfaces.PayoutClient,
	settlementRepo settlementrepo.ISettlementRepository,
	auditRepo auditrepo.IAuditRepository,
	cfg config.SettlementConfig,
	sched scheduler.Scheduler,
	logger zerolog.Logger,
) ISettlementService {
	return &settlementService{
		payout:         payout,
		settlementRepo: settlementRepo,
		auditRepo:      auditRepo,
		config:         cfg,
		sched:          sched,
		logger:         logger.With().Str("component", "settlement").Logger(),
		currencyUtils:  currency.NewCurrencyUtils(),
		active:         make(map[string]*activeSettlement),
		byConversation: make(map[string]string),
		completed:      make(chan domain.SettlementCompletedEvent, 64),
		failures:       make(chan domain.SettlementFailedEvent, 64),
	}
}

func (s *settlementService) Completed() <-chan domain.SettlementCompletedEvent {
	return s.completed
}

func (s *settlementService) Failures() <-chan domain.SettlementFailedEvent {
	return s.failures
}

func (s *settlementService) InitiateSettlement(ctx context.Context, req domain.SettlementRequest) (string, error) {
	phone, err := NormalizePhone(req.RecipientPhone)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	gross := req.FiatAmount
	fee, net := s.currencyUtils.PercentFee(gross, s.config.FeePercent)
	if net.LessThan(decimal.NewFromFloat(s.config.MinimumAmount)) {
		return "", fmt.Errorf("%w: net %s, floor %.2f", ErrBelowFloor, net.StringFixed(2), s.config.MinimumAmount)
	}

	now := s.sched.Now()
	result := &domain.SettlementResult{
		SettlementID:     uuid.New().String(),
		PaymentID:        req.PaymentID,
		Status:           domain.SettlementStatusInitiated,
		RecipientPhone:   phone,
		SettlementAmount: gross,
		ProcessingFee:    fee,
		NetAmount:        net,
		Currency:         req.FiatCurrency,
		MaxRetries:       s.config.MaxRetries,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.mu.Lock()
	s.active[result.SettlementID] = &activeSettlement{result: result, request: req}
	s.mu.Unlock()

	if err := s.settlementRepo.Create(ctx, *result); err != nil {
		s.mu.Lock()
		delete(s.active, result.SettlementID)
		s.mu.Unlock()
		return "", err
	}

	s.audit(ctx, result, domain.AuditSettlementInitiated, map[string]any{
		"gross": gross.StringFixed(2),
		"fee":   fee.StringFixed(2),
		"net":   net.StringFixed(2),
		"phone": phone,
	})

	s.logger.Info().
		Str("settlement_id", result.SettlementID).
		Str("payment_id", req.PaymentID).
		Str("net_amount", net.StringFixed(2)).
		Msg("Settlement initiated")

	s.processPayout(ctx, result.SettlementID)
	return result.SettlementID, nil
}

// processPayout submits the payout and classifies the outcome. Submission
// failures schedule an automatic retry; acceptance moves to pending.
func (s *settlementService) processPayout(ctx context.Context, settlementID string) {
	s.mu.Lock()
	entry, ok := s.active[settlementID]
	if !ok || entry.result.Terminal() {
		s.mu.Unlock()
		return
	}
	sub := interfaces.PayoutSubmission{
		Phone:       entry.result.RecipientPhone,
		Amount:      entry.result.NetAmount,
		Remarks:     entry.request.Reason,
		OccasionRef: entry.request.OrderRef,
	}
	s.mu.Unlock()

	ack, err := s.payout.SubmitPayout(ctx, sub)
	if err != nil {
		s.markSubmissionFailed(ctx, settlementID, err.Error())
		return
	}
	if ack.ResponseCode != "0" {
		s.markSubmissionFailed(ctx, settlementID, fmt.Sprintf("acceptance code %s: %s", ack.ResponseCode, ack.ResponseDescription))
		return
	}

	now := s.sched.Now()
	s.mu.Lock()
	entry, ok = s.active[settlementID]
	if !ok || entry.result.Terminal() {
		s.mu.Unlock()
		return
	}
	entry.result.Status = domain.SettlementStatusPending
	entry.result.ConversationID = ack.ConversationID
	entry.result.FailureClass = domain.FailureNone
	entry.result.FailureReason = ""
	entry.result.NextRetryAt = nil
	entry.result.UpdatedAt = now
	s.byConversation[ack.ConversationID] = settlementID
	snapshot := *entry.result
	s.mu.Unlock()

	metrics.PayoutSubmissions.WithLabelValues("accepted").Inc()
	if err := s.settlementRepo.Update(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Str("settlement_id", settlementID).Msg("Failed to persist pending settlement")
	}
	s.audit(ctx, &snapshot, domain.AuditPayoutSubmitted, map[string]any{
		"conversation_id": ack.ConversationID,
	})

	s.logger.Info().
		Str("settlement_id", settlementID).
		Str("conversation_id", ack.ConversationID).
		Msg("Payout accepted by provider, awaiting callback")
}

func (s *settlementService) markSubmissionFailed(ctx context.Context, settlementID, reason string) {
	now := s.sched.Now()

	s.mu.Lock()
	entry, ok := s.active[settlementID]
	if !ok || entry.result.Terminal() {
		s.mu.Unlock()
		return
	}
	entry.result.Status = domain.SettlementStatusFailed
	entry.result.FailureClass = domain.FailureSubmission
	entry.result.FailureReason = reason
	entry.result.UpdatedAt = now

	if entry.result.RetryCount >= entry.result.MaxRetries {
		entry.result.FailureClass = domain.FailureBudget
		entry.result.NextRetryAt = nil
		snapshot := *entry.result
		delete(s.active, settlementID)
		s.mu.Unlock()

		metrics.PayoutSubmissions.WithLabelValues("failed").Inc()
		if err := s.settlementRepo.Update(ctx, snapshot); err != nil {
			s.logger.Error().Err(err).Str("settlement_id", settlementID).Msg("Failed to persist failed settlement")
		}
		s.audit(ctx, &snapshot, domain.AuditSettlementFailed, map[string]any{
			"reason":      reason,
			"retry_count": snapshot.RetryCount,
		})
		s.logger.Error().
			Str("settlement_id", settlementID).
			Str("reason", reason).
			Int("retry_count", snapshot.RetryCount).
			Msg("Payout submission failed, retry budget exhausted")

		s.failures <- domain.SettlementFailedEvent{
			Settlement: snapshot,
			Class:      domain.FailureBudget,
			Reason:     reason,
			At:         now,
		}
		return
	}

	delay := s.config.RetryBackoffBase * (1 << entry.result.RetryCount)
	retryAt := now.Add(delay)
	entry.result.NextRetryAt = &retryAt
	snapshot := *entry.result
	entry.retryTimer = s.sched.AfterFunc(delay, func() {
		s.retry(settlementID)
	})
	s.mu.Unlock()

	metrics.PayoutSubmissions.WithLabelValues("retrying").Inc()
	if err := s.settlementRepo.Update(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Str("settlement_id", settlementID).Msg("Failed to persist settlement retry state")
	}
	s.logger.Warn().
		Str("settlement_id", settlementID).
		Str("reason", reason).
		Dur("retry_in", delay).
		Int("retry_count", snapshot.RetryCount).
		Msg("Payout submission failed, retry scheduled")
}

func (s *settlementService) retry(settlementID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.mu.Lock()
	entry, ok := s.active[settlementID]
	if !ok || entry.result.Terminal() || entry.result.Status != domain.SettlementStatusFailed {
		s.mu.Unlock()
		return
	}
	entry.result.RetryCount++
	entry.result.NextRetryAt = nil
	entry.result.UpdatedAt = s.sched.Now()
	snapshot := *entry.result
	s.mu.Unlock()

	metrics.PayoutRetries.Inc()
	s.audit(ctx, &snapshot, domain.AuditRetryAttempted, map[string]any{
		"retry_count": snapshot.RetryCount,
	})
	s.logger.Info().
		Str("settlement_id", settlementID).
		Int("retry_count", snapshot.RetryCount).
		Msg("Retrying payout submission")

	s.processPayout(ctx, settlementID)
}

func (s *settlementService) HandleCallback(ctx context.Context, cb domain.CallbackResult) error {
	now := s.sched.Now()

	s.mu.Lock()
	var entry *activeSettlement
	if settlementID, ok := s.byConversation[cb.ConversationID]; ok {
		entry = s.active[settlementID]
	}
	s.mu.Unlock()

	var result *domain.SettlementResult
	if entry != nil {
		result = entry.result
	} else {
		// Not in the active set; the settlement may have been evicted (e.g.
		// across a restart) but still exists in the store.
		stored, err := s.settlementRepo.GetByConversationID(ctx, cb.ConversationID)
		if err != nil {
			return err
		}
		if stored == nil {
			metrics.Callbacks.WithLabelValues("unknown").Inc()
			s.logger.Warn().
				Str("conversation_id", cb.ConversationID).
				Msg("Callback for unknown conversation id discarded")
			s.auditDiscard(ctx, cb, "unknown conversation id")
			return fmt.Errorf("%w: %s", ErrUnknownConversation, cb.ConversationID)
		}
		result = stored
	}

	s.mu.Lock()
	if result.Terminal() {
		s.mu.Unlock()
		metrics.Callbacks.WithLabelValues("duplicate").Inc()
		s.logger.Info().
			Str("settlement_id", result.SettlementID).
			Str("conversation_id", cb.ConversationID).
			Str("status", string(result.Status)).
			Msg("Callback for terminal settlement discarded")
		s.auditDiscard(ctx, cb, "settlement already terminal")
		return nil
	}

	if cb.Success() {
		result.Status = domain.SettlementStatusCompleted
		result.PayoutTxID = cb.TransactionID
		result.Receipt = cb.Receipt
		result.FailureClass = domain.FailureNone
		result.FailureReason = ""
		result.CompletedAt = &now
	} else {
		result.Status = domain.SettlementStatusFailed
		result.FailureClass = domain.FailureProvider
		result.FailureReason = cb.ResultDescription
	}
	result.NextRetryAt = nil
	result.UpdatedAt = now
	if entry != nil && entry.retryTimer != nil {
		entry.retryTimer.Stop()
	}
	delete(s.active, result.SettlementID)
	delete(s.byConversation, cb.ConversationID)
	snapshot := *result
	s.mu.Unlock()

	if err := s.settlementRepo.Update(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Str("settlement_id", snapshot.SettlementID).Msg("Failed to persist settlement outcome")
	}

	if snapshot.Status == domain.SettlementStatusCompleted {
		metrics.Callbacks.WithLabelValues("completed").Inc()
		s.audit(ctx, &snapshot, domain.AuditSettlementCompleted, map[string]any{
			"payout_tx_id": snapshot.PayoutTxID,
			"receipt":      snapshot.Receipt,
		})
		s.logger.Info().
			Str("settlement_id", snapshot.SettlementID).
			Str("payout_tx_id", snapshot.PayoutTxID).
			Msg("Settlement completed")
		s.completed <- domain.SettlementCompletedEvent{Settlement: snapshot, At: now}
		return nil
	}

	metrics.Callbacks.WithLabelValues("failed").Inc()
	s.audit(ctx, &snapshot, domain.AuditSettlementFailed, map[string]any{
		"result_code": cb.ResultCode,
		"reason":      snapshot.FailureReason,
	})
	s.logger.Error().
		Str("settlement_id", snapshot.SettlementID).
		Int("result_code", cb.ResultCode).
		Str("reason", snapshot.FailureReason).
		Msg("Provider rejected payout")
	s.failures <- domain.SettlementFailedEvent{
		Settlement: snapshot,
		Class:      domain.FailureProvider,
		Reason:     snapshot.FailureReason,
		At:         now,
	}
	return nil
}

func (s *settlementService) HandleTimeout(ctx context.Context, conversationID string) error {
	return s.HandleCallback(ctx, domain.CallbackResult{
		ConversationID:    conversationID,
		ResultCode:        1,
		ResultDescription: timeoutReasonCode,
		ReceivedAt:        s.sched.Now(),
	})
}

func (s *settlementService) GetSettlement(ctx context.Context, settlementID string) (*domain.SettlementResult, error) {
	s.mu.Lock()
	if entry, ok := s.active[settlementID]; ok {
		snapshot := *entry.result
		s.mu.Unlock()
		return &snapshot, nil
	}
	s.mu.Unlock()
	return s.settlementRepo.GetByID(ctx, settlementID)
}

func (s *settlementService) audit(ctx context.Context, result *domain.SettlementResult, eventType domain.AuditEventType, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	entry := domain.AuditLogEntry{
		LogID:        uuid.New().String(),
		PaymentID:    result.PaymentID,
		SettlementID: result.SettlementID,
		EventType:    eventType,
		Payload:      data,
		Timestamp:    s.sched.Now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("settlement_id", result.SettlementID).Msg("Failed to write audit entry")
	}
}

func (s *settlementService) auditDiscard(ctx context.Context, cb domain.CallbackResult, reason string) {
	payload, err := json.Marshal(map[string]any{
		"conversation_id": cb.ConversationID,
		"result_code":     cb.ResultCode,
		"reason":          reason,
	})
	if err != nil {
		payload = []byte("{}")
	}
	entry := domain.AuditLogEntry{
		LogID:     uuid.New().String(),
		EventType: domain.AuditCallbackDiscarded,
		Payload:   payload,
		Timestamp: s.sched.Now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write audit entry for discarded callback")
	}
}
