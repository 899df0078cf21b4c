package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SettlementStatus string

const (
	SettlementStatusInitiated SettlementStatus = "initiated"
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusFailed    SettlementStatus = "failed"
	SettlementStatusCancelled SettlementStatus = "cancelled"
)

// FailureClass distinguishes a payout the provider rejected from one we
// never managed to submit. Only submission failures are retried
// automatically.
type FailureClass string

const (
	FailureNone       FailureClass = ""
	FailureSubmission FailureClass = "submission"
	FailureProvider   FailureClass = "provider"
	FailureBudget     FailureClass = "budget"
)

// SettlementRequest is the payout intent derived from a confirmed
// PaymentRequest. Immutable once submitted.
type SettlementRequest struct {
	PaymentID      string          `json:"payment_id" binding:"required"`
	RecipientPhone string          `json:"recipient_phone" binding:"required"`
	LedgerAmount   decimal.Decimal `json:"ledger_amount"`
	FiatAmount     decimal.Decimal `json:"fiat_amount" binding:"required"`
	FiatCurrency   string          `json:"fiat_currency" binding:"required"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	Reason         string          `json:"reason"`
	OrderRef       string          `json:"order_ref"`
}

// SettlementResult is the mutable payout state. Once completed it is
// terminal and immutable; retries only occur from failed submissions below
// the retry budget. Invariant: NetAmount = SettlementAmount - ProcessingFee.
type SettlementResult struct {
	SettlementID     string           `json:"settlement_id" db:"settlement_id"`
	PaymentID        string           `json:"payment_id" db:"payment_id"`
	Status           SettlementStatus `json:"status" db:"status"`
	ConversationID   string           `json:"conversation_id" db:"conversation_id"`
	PayoutTxID       string           `json:"payout_tx_id" db:"payout_tx_id"`
	Receipt          string           `json:"receipt" db:"receipt"`
	RecipientPhone   string           `json:"recipient_phone" db:"recipient_phone"`
	SettlementAmount decimal.Decimal  `json:"settlement_amount" db:"settlement_amount"`
	ProcessingFee    decimal.Decimal  `json:"processing_fee" db:"processing_fee"`
	NetAmount        decimal.Decimal  `json:"net_amount" db:"net_amount"`
	Currency         string           `json:"currency" db:"currency"`
	RetryCount       int              `json:"retry_count" db:"retry_count"`
	MaxRetries       int              `json:"max_retries" db:"max_retries"`
	NextRetryAt      *time.Time       `json:"next_retry_at,omitempty" db:"next_retry_at"`
	FailureClass     FailureClass     `json:"failure_class,omitempty" db:"failure_class"`
	FailureReason    string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the settlement can no longer change state.
func (r *SettlementResult) Terminal() bool {
	switch r.Status {
	case SettlementStatusCompleted, SettlementStatusCancelled:
		return true
	case SettlementStatusFailed:
		return r.FailureClass == FailureProvider || r.FailureClass == FailureBudget
	default:
		return false
	}
}

// CallbackResult is the provider's asynchronous payout outcome, delivered
// to the result or timeout callback URL.
type CallbackResult struct {
	ConversationID           string          `json:"conversation_id"`
	OriginatorConversationID string          `json:"originator_conversation_id"`
	ResultCode               int             `json:"result_code"`
	ResultDescription        string          `json:"result_description"`
	TransactionID            string          `json:"transaction_id"`
	Receipt                  string          `json:"receipt"`
	Amount                   decimal.Decimal `json:"amount"`
	ReceivedAt               time.Time       `json:"received_at"`
}

func (c CallbackResult) Success() bool {
	return c.ResultCode == 0
}
