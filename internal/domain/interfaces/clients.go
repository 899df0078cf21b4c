package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitepay/railbridge/internal/domain"
)

// LedgerSearchClient queries the external transaction index for settled
// ledger transactions.
type LedgerSearchClient interface {
	// SearchSince returns successful transactions with consensus time at or
	// after the given instant, newest first.
	SearchSince(ctx context.Context, since time.Time) ([]domain.ObservedTransaction, error)
}

// PayoutSubmission is the provider-facing payout request.
type PayoutSubmission struct {
	Phone          string
	Amount         decimal.Decimal
	Remarks        string
	OccasionRef    string
}

// PayoutAck is the provider's synchronous acceptance response. The actual
// outcome arrives later on the result or timeout callback URL.
type PayoutAck struct {
	ConversationID           string
	OriginatorConversationID string
	ResponseCode             string
	ResponseDescription      string
}

// PayoutClient submits payouts to the mobile-money provider.
type PayoutClient interface {
	SubmitPayout(ctx context.Context, sub PayoutSubmission) (*PayoutAck, error)
}

// RatesClient resolves a conversion rate between the two rails' currencies.
type RatesClient interface {
	GetExchangeRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
}

// FulfillmentClient is the external order-fulfillment collaborator.
type FulfillmentClient interface {
	Fulfill(ctx context.Context, req domain.FulfillmentRequest) error
}

// ReversalClient executes a rail-1 payout reversal for an approved refund.
type ReversalClient interface {
	Reverse(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) error
}

// Notifier delivers a customer-facing notification on one channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, paymentID string, status domain.PaymentStatus, message string) error
}
