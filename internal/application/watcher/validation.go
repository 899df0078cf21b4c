package watcher

import (
	"strings"

	"github.com/kitepay/railbridge/internal/domain"
)

// validate runs the five per-candidate checks. All five must pass for the
// candidate to confirm the payment.
func (s *watcherService) validate(payment domain.PaymentRequest, tx domain.ObservedTransaction) domain.ValidationResult {
	result := domain.ValidationResult{
		MemoMatch: memoContainsTag(tx.Memo, payment.CorrelationTag),
	}

	var receivedSubunits int64
	for _, transfer := range tx.Transfers {
		if transfer.Account == payment.RecipientAccount && transfer.Amount > 0 {
			result.RecipientMatch = true
			receivedSubunits += transfer.Amount
		}
	}

	if result.RecipientMatch {
		received := s.currencyUtils.SubunitsToCoins(receivedSubunits)
		result.AmountMatch = s.currencyUtils.WithinTolerance(payment.Amount, received, s.config.AmountTolerance)
	}

	result.TimingValid = !tx.ConsensusTimestamp.Before(payment.CreatedAt)
	result.FeeSane = tx.ChargedFee >= 0 && tx.ChargedFee <= s.config.MaxFeeSubunits

	result.OverallValid = result.MemoMatch &&
		result.RecipientMatch &&
		result.AmountMatch &&
		result.TimingValid &&
		result.FeeSane

	return result
}

func memoContainsTag(memo, tag string) bool {
	return tag != "" && strings.Contains(memo, tag)
}
