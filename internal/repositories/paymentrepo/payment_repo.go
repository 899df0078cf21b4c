package paymentrepo

import (
	"context"

	"github.com/kitepay/railbridge/internal/domain"
)

type IPaymentRepository interface {
	Create(ctx context.Context, payment domain.PaymentRequest) error
	GetByID(ctx context.Context, paymentID string) (*domain.PaymentRequest, error)
}
