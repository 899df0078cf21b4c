package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundStatusRequested        RefundStatus = "requested"
	RefundStatusAwaitingApproval RefundStatus = "awaiting_approval"
	RefundStatusApproved         RefundStatus = "approved"
	RefundStatusExecuting        RefundStatus = "executing"
	RefundStatusCompleted        RefundStatus = "completed"
	RefundStatusFailed           RefundStatus = "failed"
)

type RefundReason string

const (
	RefundReasonCustomerRequest RefundReason = "customer_request"
	RefundReasonSystemError     RefundReason = "system_error"
	RefundReasonOrderFailed     RefundReason = "order_failed"
)

type Refund struct {
	RefundID   string          `json:"refund_id" db:"refund_id"`
	PaymentID  string          `json:"payment_id" db:"payment_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" db:"amount" binding:"required"`
	Currency   string          `json:"currency" db:"currency"`
	Reason     RefundReason    `json:"reason" db:"reason" binding:"required"`
	Detail     string          `json:"detail" db:"detail"`
	Status     RefundStatus    `json:"status" db:"status"`
	ApprovedBy string          `json:"approved_by,omitempty" db:"approved_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

type FulfillmentKind string

const (
	FulfillmentDigital  FulfillmentKind = "digital"
	FulfillmentPhysical FulfillmentKind = "physical"
	FulfillmentHybrid   FulfillmentKind = "hybrid"
)

// FulfillmentRequest is handed to the external fulfillment collaborator
// after a payment is confirmed.
type FulfillmentRequest struct {
	PaymentID  string          `json:"payment_id"`
	Kind       FulfillmentKind `json:"kind"`
	ProductRef string          `json:"product_ref"`
}

// ExchangeRate is the rate the settlement conversion used.
type ExchangeRate struct {
	Base        string          `json:"base"`
	Quote       string          `json:"quote"`
	Rate        decimal.Decimal `json:"rate"`
	RetrievedAt time.Time       `json:"retrieved_at"`
}
