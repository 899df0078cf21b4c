package tracker

import "github.com/kitepay/railbridge/internal/domain"

type stepDef struct {
	name        string
	description string
}

// Each rail walks a fixed six-step pipeline. The progress pointer only
// moves forward; terminal failure statuses freeze it where it stands.
var ledgerSteps = []stepDef{
	{"initiated", "Payment request created"},
	{"watching", "Watching ledger for matching transaction"},
	{"confirmed", "Ledger transaction validated"},
	{"settling", "Mobile-money payout in flight"},
	{"settled", "Payout confirmed by provider"},
	{"completed", "Order fulfilled"},
}

var mobileMoneySteps = []stepDef{
	{"initiated", "Payment request created"},
	{"submitted", "Payout submitted to provider"},
	{"pending", "Awaiting provider confirmation"},
	{"confirmed", "Provider accepted the transaction"},
	{"settled", "Funds delivered"},
	{"completed", "Order fulfilled"},
}

func stepsForRail(rail domain.RailType) []stepDef {
	if rail == domain.RailMobileMoney {
		return mobileMoneySteps
	}
	return ledgerSteps
}

// stepForStatus maps a unified status onto the pipeline index for a rail.
// Returns -1 when the status carries no positional information (failures
// keep the pointer where the pipeline stalled).
func stepForStatus(rail domain.RailType, status domain.PaymentStatus) int {
	if rail == domain.RailMobileMoney {
		switch status {
		case domain.PaymentStatusInitiated:
			return 0
		case domain.PaymentStatusProcessing:
			return 1
		case domain.PaymentStatusPending:
			return 2
		case domain.PaymentStatusConfirmed:
			return 3
		case domain.PaymentStatusSettled:
			return 4
		case domain.PaymentStatusCompleted:
			return 5
		}
		return -1
	}
	switch status {
	case domain.PaymentStatusInitiated:
		return 0
	case domain.PaymentStatusPending:
		return 1
	case domain.PaymentStatusConfirmed:
		return 2
	case domain.PaymentStatusProcessing:
		return 3
	case domain.PaymentStatusSettled:
		return 4
	case domain.PaymentStatusCompleted:
		return 5
	}
	return -1
}
