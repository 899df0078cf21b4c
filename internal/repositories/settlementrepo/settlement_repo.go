package settlementrepo

import (
	"context"

	"github.com/kitepay/railbridge/internal/domain"
)

type ISettlementRepository interface {
	Create(ctx context.Context, result domain.SettlementResult) error
	Update(ctx context.Context, result domain.SettlementResult) error
	GetByID(ctx context.Context, settlementID string) (*domain.SettlementResult, error)
	GetByConversationID(ctx context.Context, conversationID string) (*domain.SettlementResult, error)
}
