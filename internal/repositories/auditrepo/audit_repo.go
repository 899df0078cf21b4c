package auditrepo

import (
	"context"

	"github.com/kitepay/railbridge/internal/domain"
)

type IAuditRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	ListByPaymentID(ctx context.Context, paymentID string, limit int) ([]domain.AuditLogEntry, error)
}
