package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/kitepay/railbridge/internal/domain"
)

var (
	// ErrStatusNotFound marks a payment id with no unified status record.
	ErrStatusNotFound = errors.New("no status record for payment")

	// ErrTerminalStatus rejects transitions out of a terminal status. Reported
	// to the caller but never fatal.
	ErrTerminalStatus = errors.New("payment status is terminal")
)

type ITrackerService interface {
	// CreateStatus opens the unified view for a new payment at the first
	// pipeline step.
	CreateStatus(ctx context.Context, payment domain.PaymentRequest, rail domain.RailType) error

	// UpdateStatus applies a transition, appends it to the history, advances
	// the progress pointer and fans out notifications. Transitions out of a
	// terminal status return ErrTerminalStatus.
	UpdateStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, source, reason string) error

	AddBlocker(ctx context.Context, paymentID string, blocker domain.Blocker) error
	AddRelated(ctx context.Context, paymentID string, related domain.RelatedPayment) error
	SetFees(ctx context.Context, paymentID string, fees domain.FeeBreakdown) error

	GetStatus(ctx context.Context, paymentID string) (*domain.UnifiedPaymentStatus, error)
	GetHistory(ctx context.Context, paymentID string) ([]domain.PaymentStatusUpdate, error)
	SearchPayments(ctx context.Context, criteria domain.SearchCriteria) ([]domain.UnifiedPaymentStatus, error)
	GetAnalytics(ctx context.Context, window time.Duration) (*domain.Analytics, error)

	// ConfigureNotifications registers which transitions for a payment fan out
	// to which channels.
	ConfigureNotifications(cfg domain.NotificationConfig)

	// SetBroadcast installs the hook invoked after every persisted change,
	// used to push updates to websocket subscribers.
	SetBroadcast(fn func(domain.UnifiedPaymentStatus))
}
