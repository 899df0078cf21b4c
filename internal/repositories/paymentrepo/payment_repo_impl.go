package paymentrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
)

type paymentRepositoryImpl struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IPaymentRepository {
	return &paymentRepositoryImpl{db: db, logger: logger}
}

func (r *paymentRepositoryImpl) Create(ctx context.Context, p domain.PaymentRequest) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO payment_requests
			(payment_id, amount, currency, recipient_account, correlation_tag,
			 customer_phone, product_ref, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_id) DO NOTHING`,
		p.PaymentID, p.Amount, p.Currency, p.RecipientAccount, p.CorrelationTag,
		p.CustomerPhone, p.ProductRef, p.ExpiresAt, p.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", p.PaymentID).Msg("Failed to create payment request")
		return fmt.Errorf("failed to create payment request: %w", err)
	}
	return nil
}

func (r *paymentRepositoryImpl) GetByID(ctx context.Context, paymentID string) (*domain.PaymentRequest, error) {
	var p domain.PaymentRequest
	err := r.db.Pool.QueryRow(ctx, `
		SELECT payment_id, amount, currency, recipient_account, correlation_tag,
		       customer_phone, product_ref, expires_at, created_at
		FROM payment_requests WHERE payment_id = $1`,
		paymentID,
	).Scan(&p.PaymentID, &p.Amount, &p.Currency, &p.RecipientAccount, &p.CorrelationTag,
		&p.CustomerPhone, &p.ProductRef, &p.ExpiresAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to get payment request")
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return &p, nil
}
