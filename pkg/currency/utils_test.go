package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubunitsToCoins(t *testing.T) {
	u := NewCurrencyUtils()

	assert.True(t, u.SubunitsToCoins(2_500_000_000).Equal(decimal.NewFromInt(25)))
	assert.True(t, u.SubunitsToCoins(1).Equal(decimal.New(1, -8)))
	assert.True(t, u.SubunitsToCoins(-100_000_000).Equal(decimal.NewFromInt(-1)))
	assert.True(t, u.SubunitsToCoins(0).IsZero())
}

func TestCoinsToSubunits(t *testing.T) {
	u := NewCurrencyUtils()

	assert.Equal(t, int64(2_500_000_000), u.CoinsToSubunits(decimal.NewFromInt(25)))
	assert.Equal(t, int64(50_000_000), u.CoinsToSubunits(decimal.NewFromFloat(0.5)))
	// Below one subunit truncates.
	assert.Equal(t, int64(0), u.CoinsToSubunits(decimal.New(1, -9)))
}

func TestPercentFeeInvariant(t *testing.T) {
	u := NewCurrencyUtils()

	tests := []struct {
		name  string
		gross string
		rate  float64
	}{
		{"round amount", "2500.00", 0.01},
		{"repeating fee", "33.33", 0.01},
		{"tiny amount", "0.01", 0.01},
		{"higher rate", "150.75", 0.025},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross := decimal.RequireFromString(tt.gross)
			fee, net := u.PercentFee(gross, tt.rate)

			assert.True(t, net.Add(fee).Equal(gross), "net %s + fee %s != gross %s", net, fee, gross)
			assert.True(t, fee.GreaterThanOrEqual(decimal.Zero))
			assert.Equal(t, int32(-2), fee.Exponent())
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	u := NewCurrencyUtils()
	expected := decimal.NewFromInt(25)

	tests := []struct {
		name   string
		actual decimal.Decimal
		want   bool
	}{
		{"exact", decimal.NewFromInt(25), true},
		{"underpay at boundary", decimal.RequireFromString("24.50"), true},
		{"underpay past boundary", decimal.RequireFromString("24.49"), false},
		{"overpay at boundary", decimal.RequireFromString("25.50"), true},
		{"overpay past boundary", decimal.RequireFromString("25.51"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, u.WithinTolerance(expected, tt.actual, 0.02))
		})
	}
}

func TestWithinToleranceZeroExpected(t *testing.T) {
	u := NewCurrencyUtils()

	assert.True(t, u.WithinTolerance(decimal.Zero, decimal.Zero, 0.02))
	assert.False(t, u.WithinTolerance(decimal.Zero, decimal.NewFromInt(1), 0.02))
}

func TestConvert(t *testing.T) {
	u := NewCurrencyUtils()

	rate := decimal.RequireFromString("129.3457")
	got := u.Convert(decimal.NewFromInt(25), rate)
	require.True(t, got.Equal(decimal.RequireFromString("3233.64")), "got %s", got)
}

func TestFormatAmount(t *testing.T) {
	u := NewCurrencyUtils()
	assert.Equal(t, "2500.00 KES", u.FormatAmount(decimal.NewFromInt(2500), "KES"))
}
