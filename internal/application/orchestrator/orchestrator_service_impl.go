package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/application/settlement"
	"github.com/kitepay/railbridge/internal/application/tracker"
	"github.com/kitepay/railbridge/internal/application/watcher"
	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/domain/interfaces"
	"github.com/kitepay/railbridge/internal/repositories/auditrepo"
	"github.com/kitepay/railbridge/internal/repositories/paymentrepo"
	"github.com/kitepay/railbridge/internal/repositories/refundrepo"
	"github.com/kitepay/railbridge/internal/repositories/statusrepo"
	"github.com/kitepay/railbridge/pkg/config"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

const staleSweepBatch = 100

type orchestratorService struct {
	watcher     watcher.IWatcherService
	settlements settlement.ISettlementService
	tracker     tracker.ITrackerService
	rates       interfaces.RatesClient
	fulfillment interfaces.FulfillmentClient
	reversal    interfaces.ReversalClient

	paymentRepo paymentrepo.IPaymentRepository
	refundRepo  refundrepo.IRefundRepository
	statusRepo  statusrepo.IStatusRepository
	auditRepo   auditrepo.IAuditRepository

	config config.Config
	sched  scheduler.Scheduler
	logger zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(
	w watcher.IWatcherService,
	s settlement.ISettlementService,
	t tracker.ITrackerService,
	rates interfaces.RatesClient,
	fulfillment interfaces.FulfillmentClient,
	reversal interfaces.ReversalClient,
	paymentRepo paymentrepo.IPaymentRepository,
	refundRepo refundrepo.IRefundRepository,
	statusRepo statusrepo.IStatusRepository,
	auditRepo auditrepo.IAuditRepository,
	cfg config.Config,
	sched scheduler.Scheduler,
	logger zerolog.Logger,
) IOrchestratorService {
	return &orchestratorService{
		watcher:     w,
		settlements: s,
		tracker:     t,
		rates:       rates,
		fulfillment: fulfillment,
		reversal:    reversal,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		statusRepo:  statusRepo,
		auditRepo:   auditRepo,
		config:      cfg,
		sched:       sched,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
	}
}

func (o *orchestratorService) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel

	o.wg.Add(2)
	go o.eventLoop(loopCtx)
	go o.sweepLoop(loopCtx)
	o.logger.Info().Msg("Orchestrator started")
}

func (o *orchestratorService) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.logger.Info().Msg("Orchestrator stopped")
}

func (o *orchestratorService) eventLoop(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.watcher.Confirmations():
			o.handleConfirmation(ctx, ev)
		case ev := <-o.watcher.Timeouts():
			o.handleWatchTimeout(ctx, ev)
		case ev := <-o.settlements.Completed():
			o.handleSettlementCompleted(ctx, ev)
		case ev := <-o.settlements.Failures():
			o.handleSettlementFailed(ctx, ev)
		}
	}
}

func (o *orchestratorService) sweepLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := o.sched.NewTicker(o.config.Orchestrator.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			o.sweepStuck(ctx)
		}
	}
}

func (o *orchestratorService) RegisterPayment(ctx context.Context, payment domain.PaymentRequest) (string, error) {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = o.sched.Now()
	}
	if err := o.paymentRepo.Create(ctx, payment); err != nil {
		return "", err
	}
	if err := o.tracker.CreateStatus(ctx, payment, domain.RailLedger); err != nil {
		return "", err
	}

	sessionID, err := o.watcher.StartWatching(ctx, payment)
	if err != nil {
		return "", err
	}

	o.audit(ctx, payment.PaymentID, "", domain.AuditWatchStarted, map[string]any{
		"session_id":      sessionID,
		"correlation_tag": payment.CorrelationTag,
	})
	if err := o.tracker.UpdateStatus(ctx, payment.PaymentID, domain.PaymentStatusPending, "watcher", "ledger monitoring started"); err != nil {
		o.logger.Error().Err(err).Str("payment_id", payment.PaymentID).Msg("Failed to record pending status")
	}
	return sessionID, nil
}

func (o *orchestratorService) CancelWatch(ctx context.Context, paymentID string) error {
	if _, ok := o.watcher.Session(paymentID); !ok {
		return fmt.Errorf("%w: no active session for %s", ErrPaymentNotFound, paymentID)
	}
	o.watcher.StopWatchingPayment(paymentID, domain.SessionStatusCancelled)
	return o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusCancelled, "orchestrator", "watch cancelled by caller")
}

func (o *orchestratorService) handleConfirmation(ctx context.Context, ev domain.PaymentConfirmedEvent) {
	paymentID := ev.Payment.PaymentID
	o.audit(ctx, paymentID, "", domain.AuditPaymentConfirmed, map[string]any{
		"transaction_id": ev.Transaction.TransactionID,
		"consensus_at":   ev.Transaction.ConsensusTimestamp,
	})
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusConfirmed, "watcher", "ledger transaction validated"); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record confirmation")
	}

	if err := o.fulfillment.Fulfill(ctx, domain.FulfillmentRequest{
		PaymentID:  paymentID,
		Kind:       fulfillmentKind(ev.Payment.ProductRef),
		ProductRef: ev.Payment.ProductRef,
	}); err != nil {
		o.logger.Warn().Err(err).Str("payment_id", paymentID).Msg("Fulfillment request failed")
		o.addBlocker(ctx, paymentID, "fulfillment_failed", "order fulfillment request failed", domain.BlockerSeverityWarning, "retry fulfillment manually")
	}

	o.initiateSettlement(ctx, ev)
}

// initiateSettlement converts the confirmed ledger amount into payout
// currency and hands it to the settlement processor.
func (o *orchestratorService) initiateSettlement(ctx context.Context, ev domain.PaymentConfirmedEvent) {
	paymentID := ev.Payment.PaymentID
	payoutCurrency := o.config.Settlement.PayoutCurrency

	rate, err := o.rates.GetExchangeRate(ctx, ev.Payment.Currency, payoutCurrency)
	if err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Exchange rate lookup failed")
		o.failPayment(ctx, paymentID, "rate_unavailable", "could not resolve conversion rate for settlement")
		return
	}

	fiatAmount := ev.Payment.Amount.Mul(rate.Rate).RoundBank(2)
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusProcessing, "orchestrator", "settlement initiated"); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record processing status")
	}

	settlementID, err := o.settlements.InitiateSettlement(ctx, domain.SettlementRequest{
		PaymentID:      paymentID,
		RecipientPhone: ev.Payment.CustomerPhone,
		LedgerAmount:   ev.Payment.Amount,
		FiatAmount:     fiatAmount,
		FiatCurrency:   payoutCurrency,
		ConversionRate: rate.Rate,
		Reason:         "order settlement",
		OrderRef:       ev.Payment.ProductRef,
	})
	if err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Settlement initiation rejected")
		o.failPayment(ctx, paymentID, "settlement_rejected", err.Error())
		return
	}

	if err := o.tracker.AddRelated(ctx, paymentID, domain.RelatedPayment{
		ID:       settlementID,
		Relation: domain.RelationSettlement,
		Status:   string(domain.SettlementStatusInitiated),
		Amount:   fiatAmount,
	}); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to link settlement")
	}
}

func (o *orchestratorService) handleWatchTimeout(ctx context.Context, ev domain.WatchTimedOutEvent) {
	paymentID := ev.Payment.PaymentID
	o.audit(ctx, paymentID, "", domain.AuditWatchTimeout, map[string]any{
		"session_id": ev.SessionID,
		"reason":     ev.Reason,
	})
	o.addBlocker(ctx, paymentID, "watch_timeout", ev.Reason, domain.BlockerSeverityCritical, "verify whether the customer paid, then refund or retry")
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusFailed, "watcher", ev.Reason); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record watch timeout")
	}
}

func (o *orchestratorService) handleSettlementCompleted(ctx context.Context, ev domain.SettlementCompletedEvent) {
	paymentID := ev.Settlement.PaymentID
	if err := o.tracker.SetFees(ctx, paymentID, domain.FeeBreakdown{
		ProcessingFee: ev.Settlement.ProcessingFee,
		Currency:      ev.Settlement.Currency,
	}); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record fees")
	}
	if err := o.tracker.AddRelated(ctx, paymentID, domain.RelatedPayment{
		ID:       ev.Settlement.SettlementID,
		Relation: domain.RelationSettlement,
		Status:   string(ev.Settlement.Status),
		Amount:   ev.Settlement.NetAmount,
	}); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to update settlement link")
	}
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusSettled, "settlement", "payout confirmed by provider"); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record settled status")
	}
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusCompleted, "orchestrator", "order complete"); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record completed status")
	}
}

func (o *orchestratorService) handleSettlementFailed(ctx context.Context, ev domain.SettlementFailedEvent) {
	paymentID := ev.Settlement.PaymentID
	o.addBlocker(ctx, paymentID, "settlement_failed", ev.Reason, domain.BlockerSeverityCritical, "review payout failure and refund or resubmit manually")
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusFailed, "settlement", ev.Reason); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record settlement failure")
	}
}

// sweepStuck fails orders that have sat in a non-terminal status beyond the
// processing timeout.
func (o *orchestratorService) sweepStuck(ctx context.Context) {
	cutoff := o.sched.Now().Add(-o.config.Orchestrator.ProcessingTimeout)
	stale, err := o.statusRepo.ListStale(ctx, cutoff, staleSweepBatch)
	if err != nil {
		o.logger.Error().Err(err).Msg("Stuck-order sweep query failed")
		return
	}

	for _, s := range stale {
		o.logger.Warn().
			Str("payment_id", s.PaymentID).
			Str("status", string(s.Status)).
			Time("updated_at", s.UpdatedAt).
			Msg("Expiring stuck order")

		o.watcher.StopWatchingPayment(s.PaymentID, domain.SessionStatusTimeout)
		o.audit(ctx, s.PaymentID, "", domain.AuditOrderExpired, map[string]any{
			"stuck_status": s.Status,
			"updated_at":   s.UpdatedAt,
		})
		o.addBlocker(ctx, s.PaymentID, "processing_timeout", "order exceeded the processing timeout", domain.BlockerSeverityCritical, "investigate and refund if the customer paid")
		if err := o.tracker.UpdateStatus(ctx, s.PaymentID, domain.PaymentStatusFailed, "sweep", "processing timeout exceeded"); err != nil {
			o.logger.Error().Err(err).Str("payment_id", s.PaymentID).Msg("Failed to expire stuck order")
		}
	}
}

func (o *orchestratorService) RequestRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error) {
	status, err := o.tracker.GetStatus(ctx, refund.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, refund.PaymentID)
	}

	now := o.sched.Now()
	refund.RefundID = uuid.New().String()
	refund.Status = domain.RefundStatusRequested
	if refund.Currency == "" {
		refund.Currency = status.Currency
	}
	refund.CreatedAt = now
	refund.UpdatedAt = now

	if err := o.refundRepo.Create(ctx, refund); err != nil {
		return nil, err
	}
	o.audit(ctx, refund.PaymentID, "", domain.AuditRefundRequested, map[string]any{
		"refund_id": refund.RefundID,
		"amount":    refund.Amount.StringFixed(2),
		"reason":    refund.Reason,
	})
	if err := o.tracker.AddRelated(ctx, refund.PaymentID, domain.RelatedPayment{
		ID:       refund.RefundID,
		Relation: domain.RelationRefund,
		Status:   string(refund.Status),
		Amount:   refund.Amount,
	}); err != nil {
		o.logger.Error().Err(err).Str("payment_id", refund.PaymentID).Msg("Failed to link refund")
	}

	autoApprove := refund.Reason == domain.RefundReasonSystemError ||
		refund.Amount.InexactFloat64() <= o.config.Refunds.AutoApproveLimit
	if !autoApprove {
		refund.Status = domain.RefundStatusAwaitingApproval
		refund.UpdatedAt = o.sched.Now()
		if err := o.refundRepo.Update(ctx, refund); err != nil {
			return nil, err
		}
		o.logger.Info().
			Str("refund_id", refund.RefundID).
			Str("payment_id", refund.PaymentID).
			Msg("Refund queued for manual approval")
		return &refund, nil
	}

	if err := o.approveAndExecute(ctx, &refund, "auto"); err != nil {
		return &refund, err
	}
	return &refund, nil
}

func (o *orchestratorService) ApproveRefund(ctx context.Context, refundID, approver string) error {
	refund, err := o.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return err
	}
	if refund == nil {
		return fmt.Errorf("%w: %s", ErrRefundNotFound, refundID)
	}
	if refund.Status != domain.RefundStatusAwaitingApproval {
		return fmt.Errorf("%w: status %s", ErrRefundNotApprovable, refund.Status)
	}
	return o.approveAndExecute(ctx, refund, approver)
}

func (o *orchestratorService) GetRefund(ctx context.Context, refundID string) (*domain.Refund, error) {
	refund, err := o.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, fmt.Errorf("%w: %s", ErrRefundNotFound, refundID)
	}
	return refund, nil
}

func (o *orchestratorService) approveAndExecute(ctx context.Context, refund *domain.Refund, approver string) error {
	refund.Status = domain.RefundStatusApproved
	refund.ApprovedBy = approver
	refund.UpdatedAt = o.sched.Now()
	if err := o.refundRepo.Update(ctx, *refund); err != nil {
		return err
	}
	o.audit(ctx, refund.PaymentID, "", domain.AuditRefundApproved, map[string]any{
		"refund_id":   refund.RefundID,
		"approved_by": approver,
	})

	refund.Status = domain.RefundStatusExecuting
	refund.UpdatedAt = o.sched.Now()
	if err := o.refundRepo.Update(ctx, *refund); err != nil {
		return err
	}

	if err := o.reversal.Reverse(ctx, refund.PaymentID, refund.Amount, refund.Currency); err != nil {
		refund.Status = domain.RefundStatusFailed
		refund.UpdatedAt = o.sched.Now()
		if uerr := o.refundRepo.Update(ctx, *refund); uerr != nil {
			o.logger.Error().Err(uerr).Str("refund_id", refund.RefundID).Msg("Failed to persist refund failure")
		}
		o.addBlocker(ctx, refund.PaymentID, "refund_failed", err.Error(), domain.BlockerSeverityCritical, "execute the reversal manually")
		return fmt.Errorf("reversal failed: %w", err)
	}

	refund.Status = domain.RefundStatusCompleted
	refund.UpdatedAt = o.sched.Now()
	if err := o.refundRepo.Update(ctx, *refund); err != nil {
		return err
	}
	o.audit(ctx, refund.PaymentID, "", domain.AuditRefundExecuted, map[string]any{
		"refund_id": refund.RefundID,
		"amount":    refund.Amount.StringFixed(2),
	})
	if err := o.tracker.UpdateStatus(ctx, refund.PaymentID, domain.PaymentStatusRefunded, "orchestrator", "refund executed"); err != nil {
		o.logger.Warn().Err(err).Str("payment_id", refund.PaymentID).Msg("Could not mark payment refunded")
	}
	o.logger.Info().
		Str("refund_id", refund.RefundID).
		Str("payment_id", refund.PaymentID).
		Msg("Refund executed")
	return nil
}

func (o *orchestratorService) failPayment(ctx context.Context, paymentID, blockerType, reason string) {
	o.addBlocker(ctx, paymentID, blockerType, reason, domain.BlockerSeverityCritical, "manual review required")
	if err := o.tracker.UpdateStatus(ctx, paymentID, domain.PaymentStatusFailed, "orchestrator", reason); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to record payment failure")
	}
}

func (o *orchestratorService) addBlocker(ctx context.Context, paymentID, blockerType, description string, severity domain.BlockerSeverity, action string) {
	if err := o.tracker.AddBlocker(ctx, paymentID, domain.Blocker{
		Type:           blockerType,
		Description:    description,
		Severity:       severity,
		RequiredAction: action,
		RaisedAt:       o.sched.Now(),
	}); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to add blocker")
	}
}

func (o *orchestratorService) audit(ctx context.Context, paymentID, settlementID string, eventType domain.AuditEventType, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	entry := domain.AuditLogEntry{
		LogID:        uuid.New().String(),
		PaymentID:    paymentID,
		SettlementID: settlementID,
		EventType:    eventType,
		Payload:      data,
		Timestamp:    o.sched.Now(),
	}
	if err := o.auditRepo.Append(ctx, entry); err != nil {
		o.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to write audit entry")
	}
}

// fulfillmentKind derives the delivery mode from the product reference
// prefix. Unprefixed products ship both a digital receipt and goods.
func fulfillmentKind(productRef string) domain.FulfillmentKind {
	switch {
	case strings.HasPrefix(productRef, "digital:"):
		return domain.FulfillmentDigital
	case strings.HasPrefix(productRef, "physical:"):
		return domain.FulfillmentPhysical
	default:
		return domain.FulfillmentHybrid
	}
}
