package watcher

import (
	"context"
	"errors"

	"github.com/kitepay/railbridge/internal/domain"
)

// ErrSessionExists is returned when a watch is requested for a payment id
// that already has an active monitoring session.
var ErrSessionExists = errors.New("monitoring session already active for payment")

type IWatcherService interface {
	// StartWatching creates a monitoring session for the payment and begins
	// its poll loop. Returns the session id.
	StartWatching(ctx context.Context, payment domain.PaymentRequest) (string, error)

	// StopWatching cancels the session's poll loop and marks it with the
	// given terminal status. Unknown ids and repeat calls are no-ops.
	StopWatching(sessionID string, status domain.SessionStatus)

	// StopWatchingPayment cancels the active session for a payment id, if any.
	StopWatchingPayment(paymentID string, status domain.SessionStatus)

	// Session returns a snapshot of the session for a payment id.
	Session(paymentID string) (domain.MonitoringSession, bool)

	ActiveCount() int

	Confirmations() <-chan domain.PaymentConfirmedEvent
	Timeouts() <-chan domain.WatchTimedOutEvent
}
