package refundrepo

import (
	"context"

	"github.com/kitepay/railbridge/internal/domain"
)

type IRefundRepository interface {
	Create(ctx context.Context, refund domain.Refund) error
	Update(ctx context.Context, refund domain.Refund) error
	GetByID(ctx context.Context, refundID string) (*domain.Refund, error)
}
