package settlementrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
)

type settlementRepositoryImpl struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ISettlementRepository {
	return &settlementRepositoryImpl{db: db, logger: logger}
}

func (r *settlementRepositoryImpl) Create(ctx context.Context, s domain.SettlementResult) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO settlements
			(settlement_id, payment_id, status, conversation_id, payout_tx_id, receipt,
			 recipient_phone, settlement_amount, processing_fee, net_amount, currency,
			 retry_count, max_retries, next_retry_at, failure_class, failure_reason,
			 completed_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		s.SettlementID, s.PaymentID, s.Status, s.ConversationID, s.PayoutTxID, s.Receipt,
		s.RecipientPhone, s.SettlementAmount, s.ProcessingFee, s.NetAmount, s.Currency,
		s.RetryCount, s.MaxRetries, s.NextRetryAt, s.FailureClass, s.FailureReason,
		s.CompletedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("settlement_id", s.SettlementID).Msg("Failed to create settlement")
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

func (r *settlementRepositoryImpl) Update(ctx context.Context, s domain.SettlementResult) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE settlements SET
			status = $2, conversation_id = $3, payout_tx_id = $4, receipt = $5,
			retry_count = $6, next_retry_at = $7, failure_class = $8,
			failure_reason = $9, completed_at = $10, updated_at = $11
		WHERE settlement_id = $1`,
		s.SettlementID, s.Status, s.ConversationID, s.PayoutTxID, s.Receipt,
		s.RetryCount, s.NextRetryAt, s.FailureClass, s.FailureReason,
		s.CompletedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("settlement_id", s.SettlementID).Msg("Failed to update settlement")
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return nil
}

func (r *settlementRepositoryImpl) GetByID(ctx context.Context, settlementID string) (*domain.SettlementResult, error) {
	return r.get(ctx, "settlement_id = $1", settlementID)
}

func (r *settlementRepositoryImpl) GetByConversationID(ctx context.Context, conversationID string) (*domain.SettlementResult, error) {
	return r.get(ctx, "conversation_id = $1", conversationID)
}

func (r *settlementRepositoryImpl) get(ctx context.Context, where string, arg any) (*domain.SettlementResult, error) {
	var s domain.SettlementResult
	err := r.db.Pool.QueryRow(ctx, `
		SELECT settlement_id, payment_id, status, conversation_id, payout_tx_id, receipt,
		       recipient_phone, settlement_amount, processing_fee, net_amount, currency,
		       retry_count, max_retries, next_retry_at, failure_class, failure_reason,
		       completed_at, created_at, updated_at
		FROM settlements WHERE `+where,
		arg,
	).Scan(&s.SettlementID, &s.PaymentID, &s.Status, &s.ConversationID, &s.PayoutTxID, &s.Receipt,
		&s.RecipientPhone, &s.SettlementAmount, &s.ProcessingFee, &s.NetAmount, &s.Currency,
		&s.RetryCount, &s.MaxRetries, &s.NextRetryAt, &s.FailureClass, &s.FailureReason,
		&s.CompletedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("Failed to get settlement")
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return &s, nil
}
