package refundrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
)

type refundRepositoryImpl struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IRefundRepository {
	return &refundRepositoryImpl{db: db, logger: logger}
}

func (r *refundRepositoryImpl) Create(ctx context.Context, f domain.Refund) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO refunds
			(refund_id, payment_id, amount, currency, reason, detail, status,
			 approved_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		f.RefundID, f.PaymentID, f.Amount, f.Currency, f.Reason, f.Detail, f.Status,
		f.ApprovedBy, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("refund_id", f.RefundID).Msg("Failed to create refund")
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

func (r *refundRepositoryImpl) Update(ctx context.Context, f domain.Refund) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE refunds SET status = $2, approved_by = $3, updated_at = $4
		WHERE refund_id = $1`,
		f.RefundID, f.Status, f.ApprovedBy, f.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("refund_id", f.RefundID).Msg("Failed to update refund")
		return fmt.Errorf("failed to update refund: %w", err)
	}
	return nil
}

func (r *refundRepositoryImpl) GetByID(ctx context.Context, refundID string) (*domain.Refund, error) {
	var f domain.Refund
	err := r.db.Pool.QueryRow(ctx, `
		SELECT refund_id, payment_id, amount, currency, reason, detail, status,
		       approved_by, created_at, updated_at
		FROM refunds WHERE refund_id = $1`, refundID,
	).Scan(&f.RefundID, &f.PaymentID, &f.Amount, &f.Currency, &f.Reason, &f.Detail, &f.Status,
		&f.ApprovedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("refund_id", refundID).Msg("Failed to get refund")
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &f, nil
}
