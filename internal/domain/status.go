package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusInitiated  PaymentStatus = "initiated"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusConfirmed  PaymentStatus = "confirmed"
	PaymentStatusSettled    PaymentStatus = "settled"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// TerminalStatus reports whether the status ends the payment lifecycle.
func TerminalStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

type BlockerSeverity string

const (
	BlockerSeverityInfo     BlockerSeverity = "info"
	BlockerSeverityWarning  BlockerSeverity = "warning"
	BlockerSeverityCritical BlockerSeverity = "critical"
)

type Blocker struct {
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	Severity       BlockerSeverity `json:"severity"`
	RequiredAction string          `json:"required_action"`
	RaisedAt       time.Time       `json:"raised_at"`
}

type CompletedStep struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Outcome     string        `json:"outcome"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

type Progress struct {
	CurrentStep     int             `json:"current_step"`
	StepName        string          `json:"step_name"`
	StepDescription string          `json:"step_description"`
	RemainingSteps  []string        `json:"remaining_steps"`
	CompletedSteps  []CompletedStep `json:"completed_steps"`
	Blockers        []Blocker       `json:"blockers,omitempty"`
}

type RelationKind string

const (
	RelationParent     RelationKind = "parent"
	RelationChild      RelationKind = "child"
	RelationSettlement RelationKind = "settlement"
	RelationRefund     RelationKind = "refund"
)

type RelatedPayment struct {
	ID       string          `json:"id"`
	Relation RelationKind    `json:"relation"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
}

type FeeBreakdown struct {
	LedgerFee     decimal.Decimal `json:"ledger_fee"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	Currency      string          `json:"currency"`
}

type StatusMetadata struct {
	Fees            FeeBreakdown `json:"fees"`
	ComplianceFlags []string     `json:"compliance_flags,omitempty"`
}

// PaymentStatusUpdate is one append-only history entry recording a
// transition on the unified view.
type PaymentStatusUpdate struct {
	PreviousStatus PaymentStatus `json:"previous_status"`
	NewStatus      PaymentStatus `json:"new_status"`
	Source         string        `json:"source"`
	Reason         string        `json:"reason"`
	Timestamp      time.Time     `json:"timestamp"`
}

// UnifiedPaymentStatus reconciles both rails' progress into a single
// auditable view per payment id.
type UnifiedPaymentStatus struct {
	PaymentID string                `json:"payment_id" db:"payment_id"`
	RailType  RailType              `json:"rail_type" db:"rail_type"`
	Status    PaymentStatus         `json:"status" db:"status"`
	Amount    decimal.Decimal       `json:"amount" db:"amount"`
	Currency  string                `json:"currency" db:"currency"`
	Customer  string                `json:"customer" db:"customer"`
	Progress  Progress              `json:"progress" db:"progress"`
	Related   []RelatedPayment      `json:"related_payments,omitempty" db:"related"`
	Metadata  StatusMetadata        `json:"metadata" db:"metadata"`
	History   []PaymentStatusUpdate `json:"history" db:"history"`
	CreatedAt time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt time.Time             `json:"updated_at" db:"updated_at"`
}

type NotificationTrigger string

const (
	TriggerStatusChange NotificationTrigger = "status_change"
	TriggerCompletion   NotificationTrigger = "completion"
	TriggerError        NotificationTrigger = "error"
)

// NotificationConfig declares which transitions for a payment should fan
// out to which channels.
type NotificationConfig struct {
	PaymentID string                `json:"payment_id"`
	Triggers  []NotificationTrigger `json:"triggers"`
	Channels  []string              `json:"channels"`
}

// SearchCriteria filters the read-side payment search.
type SearchCriteria struct {
	Status   PaymentStatus `json:"status,omitempty" form:"status"`
	RailType RailType      `json:"rail_type,omitempty" form:"rail_type"`
	Customer string        `json:"customer,omitempty" form:"customer"`
	Since    time.Time     `json:"since,omitempty" form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit    int           `json:"limit,omitempty" form:"limit"`
}

// Analytics aggregates the status set over a time window.
type Analytics struct {
	Window        time.Duration            `json:"window"`
	TotalPayments int                      `json:"total_payments"`
	ByStatus      map[PaymentStatus]int    `json:"by_status"`
	ByRail        map[RailType]int         `json:"by_rail"`
	SuccessRate   float64                  `json:"success_rate"`
	Volume        map[string]decimal.Decimal `json:"volume"`
}
