package domain

import "time"

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusTimeout   SessionStatus = "timeout"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

type SessionEventType string

const (
	SessionEventStarted           SessionEventType = "started"
	SessionEventPolling           SessionEventType = "polling"
	SessionEventTransactionFound  SessionEventType = "transaction_found"
	SessionEventValidationSuccess SessionEventType = "validation_success"
	SessionEventValidationFailed  SessionEventType = "validation_failed"
	SessionEventTimeout           SessionEventType = "timeout"
	SessionEventError             SessionEventType = "error"
)

type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	Detail    string           `json:"detail,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// MonitoringSession tracks one poll loop watching the ledger for a single
// PaymentRequest. Exactly one session per payment id may be active at a time;
// the session is mutated only by its own poll tick and removed from the
// active set on any terminal status.
type MonitoringSession struct {
	SessionID   string         `json:"session_id" db:"session_id"`
	PaymentID   string         `json:"payment_id" db:"payment_id"`
	Status      SessionStatus  `json:"status" db:"status"`
	RetryCount  int            `json:"retry_count" db:"retry_count"`
	LastChecked time.Time      `json:"last_checked" db:"last_checked"`
	Deadline    time.Time      `json:"deadline" db:"deadline"`
	Events      []SessionEvent `json:"events" db:"events"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

func (s *MonitoringSession) AppendEvent(eventType SessionEventType, detail string, at time.Time) {
	s.Events = append(s.Events, SessionEvent{Type: eventType, Detail: detail, Timestamp: at})
	s.UpdatedAt = at
}

// ValidationResult records the five per-candidate checks the watcher runs.
type ValidationResult struct {
	MemoMatch      bool `json:"memo_match"`
	RecipientMatch bool `json:"recipient_match"`
	AmountMatch    bool `json:"amount_match"`
	TimingValid    bool `json:"timing_valid"`
	FeeSane        bool `json:"fee_sane"`
	OverallValid   bool `json:"overall_valid"`
}
