package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RailType string

const (
	RailLedger      RailType = "ledger"
	RailMobileMoney RailType = "mobile_money"
)

// PaymentRequest is the immutable inbound-payment intent created by the
// upstream initiation step. The correlation tag is embedded in the ledger
// memo by the payer's wallet and is the only link between the two rails.
type PaymentRequest struct {
	PaymentID        string          `json:"payment_id" db:"payment_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount" db:"amount" binding:"required"`
	Currency         string          `json:"currency" db:"currency" binding:"required"`
	RecipientAccount string          `json:"recipient_account" db:"recipient_account" binding:"required"`
	CorrelationTag   string          `json:"correlation_tag" db:"correlation_tag" binding:"required"`
	CustomerPhone    string          `json:"customer_phone" db:"customer_phone"`
	ProductRef       string          `json:"product_ref" db:"product_ref"`
	ExpiresAt        time.Time       `json:"expires_at" db:"expires_at" binding:"required"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// LedgerTransfer is one (account, signed subunit amount) movement inside an
// observed ledger transaction.
type LedgerTransfer struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// ObservedTransaction is a candidate match returned by the ledger index.
// It is ephemeral and never persisted beyond validation.
type ObservedTransaction struct {
	TransactionID      string           `json:"transaction_id"`
	ConsensusTimestamp time.Time        `json:"consensus_timestamp"`
	TransactionHash    string           `json:"transaction_hash"`
	Transfers          []LedgerTransfer `json:"transfers"`
	Memo               string           `json:"memo"`
	ChargedFee         int64            `json:"charged_tx_fee"`
	Result             string           `json:"result"`
}
