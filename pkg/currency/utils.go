package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SubunitsPerCoin is the number of indivisible ledger subunits in one whole coin.
const SubunitsPerCoin = 100_000_000

type CurrencyUtils struct{}

func NewCurrencyUtils() *CurrencyUtils {
	return &CurrencyUtils{}
}

// SubunitsToCoins converts a signed subunit amount to whole-coin units.
func (u *CurrencyUtils) SubunitsToCoins(subunits int64) decimal.Decimal {
	return decimal.New(subunits, 0).Div(decimal.New(SubunitsPerCoin, 0))
}

// CoinsToSubunits converts a whole-coin amount to subunits, truncating
// anything below one subunit.
func (u *CurrencyUtils) CoinsToSubunits(coins decimal.Decimal) int64 {
	return coins.Mul(decimal.New(SubunitsPerCoin, 0)).IntPart()
}

// PercentFee splits a gross amount into (fee, net) at the given rate.
// The fee is rounded to 2 decimal places and the net is derived by
// subtraction so that net + fee == gross exactly.
func (u *CurrencyUtils) PercentFee(gross decimal.Decimal, rate float64) (fee, net decimal.Decimal) {
	fee = gross.Mul(decimal.NewFromFloat(rate)).RoundBank(2)
	net = gross.Sub(fee)
	return fee, net
}

// Convert applies an exchange rate to an amount, rounded to 2 decimal places.
func (u *CurrencyUtils) Convert(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).RoundBank(2)
}

// WithinTolerance reports whether actual is within the given fractional
// tolerance of expected (e.g. 0.02 for 2%). Overpayments also pass.
func (u *CurrencyUtils) WithinTolerance(expected, actual decimal.Decimal, tolerance float64) bool {
	if expected.IsZero() {
		return actual.IsZero()
	}
	diff := actual.Sub(expected).Abs()
	limit := expected.Abs().Mul(decimal.NewFromFloat(tolerance))
	return diff.LessThanOrEqual(limit)
}

// FormatAmount renders an amount with its currency code for audit entries.
func (u *CurrencyUtils) FormatAmount(amount decimal.Decimal, code string) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), code)
}
