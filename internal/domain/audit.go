package domain

import (
	"encoding/json"
	"time"
)

type AuditEventType string

const (
	AuditWatchStarted        AuditEventType = "watch_started"
	AuditPaymentConfirmed    AuditEventType = "payment_confirmed"
	AuditWatchTimeout        AuditEventType = "watch_timeout"
	AuditSettlementInitiated AuditEventType = "settlement_initiated"
	AuditPayoutSubmitted     AuditEventType = "payout_submitted"
	AuditRetryAttempted      AuditEventType = "retry_attempted"
	AuditSettlementCompleted AuditEventType = "settlement_completed"
	AuditSettlementFailed    AuditEventType = "settlement_failed"
	AuditCallbackDiscarded   AuditEventType = "callback_discarded"
	AuditRefundRequested     AuditEventType = "refund_requested"
	AuditRefundApproved      AuditEventType = "refund_approved"
	AuditRefundExecuted      AuditEventType = "refund_executed"
	AuditOrderExpired        AuditEventType = "order_expired"
)

// AuditLogEntry is append-only; entries are never mutated and only removed
// by retention policy.
type AuditLogEntry struct {
	LogID        string          `json:"log_id" db:"log_id"`
	PaymentID    string          `json:"payment_id" db:"payment_id"`
	SettlementID string          `json:"settlement_id,omitempty" db:"settlement_id"`
	EventType    AuditEventType  `json:"event_type" db:"event_type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}
