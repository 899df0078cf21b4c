package statusrepo

import (
	"context"
	"time"

	"github.com/kitepay/railbridge/internal/domain"
)

type IStatusRepository interface {
	Upsert(ctx context.Context, status domain.UnifiedPaymentStatus) error
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.UnifiedPaymentStatus, error)
	// ListStale returns non-terminal statuses last updated before the cutoff,
	// oldest first; used by the stuck-order sweep.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.UnifiedPaymentStatus, error)
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.UnifiedPaymentStatus, error)
	// ListSince returns all statuses created at or after the given instant;
	// feeds the analytics aggregation.
	ListSince(ctx context.Context, since time.Time) ([]domain.UnifiedPaymentStatus, error)
}
