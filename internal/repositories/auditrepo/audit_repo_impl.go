package auditrepo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
)

type auditRepositoryImpl struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IAuditRepository {
	return &auditRepositoryImpl{db: db, logger: logger}
}

func (r *auditRepositoryImpl) Append(ctx context.Context, e domain.AuditLogEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO audit_log (log_id, payment_id, settlement_id, event_type, payload, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.LogID, e.PaymentID, e.SettlementID, e.EventType, e.Payload, e.Timestamp,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", e.PaymentID).Str("event_type", string(e.EventType)).Msg("Failed to append audit entry")
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *auditRepositoryImpl) ListByPaymentID(ctx context.Context, paymentID string, limit int) ([]domain.AuditLogEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT log_id, payment_id, settlement_id, event_type, payload, ts
		FROM audit_log WHERE payment_id = $1
		ORDER BY ts DESC LIMIT $2`, paymentID, limit)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to list audit entries")
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.LogID, &e.PaymentID, &e.SettlementID, &e.EventType, &e.Payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
