package domain

import "time"

// Events are the only propagation channel between the watcher, the
// settlement processor and the orchestrator. Payloads are immutable values.

// PaymentConfirmedEvent fires at most once per payment id, when the first
// valid candidate transaction passes validation.
type PaymentConfirmedEvent struct {
	Payment     PaymentRequest
	Transaction ObservedTransaction
	Validation  ValidationResult
	ConfirmedAt time.Time
}

// WatchTimedOutEvent fires when a session exhausts its deadline or retry
// budget without a confirmation.
type WatchTimedOutEvent struct {
	Payment   PaymentRequest
	SessionID string
	Reason    string
	At        time.Time
}

// SettlementCompletedEvent fires when a success callback completes a payout.
type SettlementCompletedEvent struct {
	Settlement SettlementResult
	At         time.Time
}

// SettlementFailedEvent fires on a terminal payout failure.
type SettlementFailedEvent struct {
	Settlement SettlementResult
	Class      FailureClass
	Reason     string
	At         time.Time
}
