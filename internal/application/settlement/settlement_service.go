package settlement

import (
	"context"
	"errors"

	"github.com/kitepay/railbridge/internal/domain"
)

var (
	// ErrBelowFloor rejects settlements whose net amount after fee deduction
	// is under the configured minimum. Never retried.
	ErrBelowFloor = errors.New("net settlement amount below minimum floor")

	// ErrInvalidRecipient rejects recipient identifiers that cannot be
	// normalized to the provider's canonical format.
	ErrInvalidRecipient = errors.New("invalid recipient identifier")

	// ErrUnknownConversation marks a callback whose conversation id matches
	// no known settlement. Logged and discarded, never fatal.
	ErrUnknownConversation = errors.New("unknown conversation id")
)

type ISettlementService interface {
	// InitiateSettlement validates and stores the payout intent, then
	// synchronously attempts the first submission. Returns the settlement id.
	InitiateSettlement(ctx context.Context, req domain.SettlementRequest) (string, error)

	// HandleCallback applies the provider's asynchronous payout outcome.
	// Callbacks for terminal settlements are discarded.
	HandleCallback(ctx context.Context, cb domain.CallbackResult) error

	// HandleTimeout treats a queue-timeout callback as a failure result with
	// a fixed reason code.
	HandleTimeout(ctx context.Context, conversationID string) error

	GetSettlement(ctx context.Context, settlementID string) (*domain.SettlementResult, error)

	Completed() <-chan domain.SettlementCompletedEvent
	Failures() <-chan domain.SettlementFailedEvent
}
