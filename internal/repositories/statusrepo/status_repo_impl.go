package statusrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
)

type statusRepositoryImpl struct {
	db     *database.DBManager
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IStatusRepository {
	return &statusRepositoryImpl{db: db, logger: logger}
}

func (r *statusRepositoryImpl) Upsert(ctx context.Context, s domain.UnifiedPaymentStatus) error {
	progress, err := json.Marshal(s.Progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	related, err := json.Marshal(s.Related)
	if err != nil {
		return fmt.Errorf("failed to marshal related payments: %w", err)
	}
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	history, err := json.Marshal(s.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO unified_statuses
			(payment_id, rail_type, status, amount, currency, customer,
			 progress, related, metadata, history, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (payment_id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			related = EXCLUDED.related,
			metadata = EXCLUDED.metadata,
			history = EXCLUDED.history,
			updated_at = EXCLUDED.updated_at`,
		s.PaymentID, s.RailType, s.Status, s.Amount, s.Currency, s.Customer,
		progress, related, metadata, history, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", s.PaymentID).Msg("Failed to upsert unified status")
		return fmt.Errorf("failed to upsert unified status: %w", err)
	}
	return nil
}

func (r *statusRepositoryImpl) GetByPaymentID(ctx context.Context, paymentID string) (*domain.UnifiedPaymentStatus, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT payment_id, rail_type, status, amount, currency, customer,
		       progress, related, metadata, history, created_at, updated_at
		FROM unified_statuses WHERE payment_id = $1`, paymentID)

	s, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_id", paymentID).Msg("Failed to get unified status")
		return nil, fmt.Errorf("failed to get unified status: %w", err)
	}
	return s, nil
}

func (r *statusRepositoryImpl) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.UnifiedPaymentStatus, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT payment_id, rail_type, status, amount, currency, customer,
		       progress, related, metadata, history, created_at, updated_at
		FROM unified_statuses
		WHERE status NOT IN ('completed', 'failed', 'cancelled', 'refunded')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list stale statuses")
		return nil, fmt.Errorf("failed to list stale statuses: %w", err)
	}
	defer rows.Close()

	var result []domain.UnifiedPaymentStatus
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale status: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *statusRepositoryImpl) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.UnifiedPaymentStatus, error) {
	query := `
		SELECT payment_id, rail_type, status, amount, currency, customer,
		       progress, related, metadata, history, created_at, updated_at
		FROM unified_statuses WHERE 1=1`
	var args []any
	if c.Status != "" {
		args = append(args, c.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if c.RailType != "" {
		args = append(args, c.RailType)
		query += fmt.Sprintf(" AND rail_type = $%d", len(args))
	}
	if c.Customer != "" {
		args = append(args, c.Customer)
		query += fmt.Sprintf(" AND customer = $%d", len(args))
	}
	if !c.Since.IsZero() {
		args = append(args, c.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	args = append(args, c.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to search statuses")
		return nil, fmt.Errorf("failed to search statuses: %w", err)
	}
	defer rows.Close()

	var result []domain.UnifiedPaymentStatus
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *statusRepositoryImpl) ListSince(ctx context.Context, since time.Time) ([]domain.UnifiedPaymentStatus, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT payment_id, rail_type, status, amount, currency, customer,
		       progress, related, metadata, history, created_at, updated_at
		FROM unified_statuses
		WHERE created_at >= $1`, since)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list statuses for analytics")
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var result []domain.UnifiedPaymentStatus
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*domain.UnifiedPaymentStatus, error) {
	var s domain.UnifiedPaymentStatus
	var progress, related, metadata, history []byte
	if err := row.Scan(&s.PaymentID, &s.RailType, &s.Status, &s.Amount, &s.Currency, &s.Customer,
		&progress, &related, &metadata, &history, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(progress, &s.Progress); err != nil {
		return nil, err
	}
	if len(related) > 0 {
		if err := json.Unmarshal(related, &s.Related); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.History); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
