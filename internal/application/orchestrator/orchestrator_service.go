package orchestrator

import (
	"context"
	"errors"

	"github.com/kitepay/railbridge/internal/domain"
)

var (
	// ErrPaymentNotFound marks an operation against an unknown payment id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrRefundNotApprovable rejects approval of a refund that is not
	// awaiting approval.
	ErrRefundNotApprovable = errors.New("refund is not awaiting approval")

	// ErrRefundNotFound marks an operation against an unknown refund id.
	ErrRefundNotFound = errors.New("refund not found")
)

// IOrchestratorService drives the end-to-end flow: it owns the event loop
// joining the watcher and the settlement processor, and the refund and
// stuck-order lifecycles.
type IOrchestratorService interface {
	// Start launches the event loop and the stuck-order sweep.
	Start(ctx context.Context)
	Stop()

	// RegisterPayment stores the payment, opens its unified status and starts
	// the ledger watch. Returns the monitoring session id.
	RegisterPayment(ctx context.Context, payment domain.PaymentRequest) (string, error)

	// CancelWatch stops the active monitoring session for a payment and marks
	// the payment cancelled.
	CancelWatch(ctx context.Context, paymentID string) error

	// RequestRefund opens a refund. Refunds at or under the auto-approve
	// limit, and refunds for system errors, execute immediately; the rest
	// wait for manual approval.
	RequestRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error)

	// ApproveRefund applies a manual approval and executes the reversal.
	ApproveRefund(ctx context.Context, refundID, approver string) error

	GetRefund(ctx context.Context, refundID string) (*domain.Refund, error)
}
