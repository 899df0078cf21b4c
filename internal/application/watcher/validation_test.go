package watcher

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/kitepay/railbridge/internal/domain"
	"github.com/kitepay/railbridge/pkg/scheduler"
)

func TestValidate(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	svc := New(&fakeLedger{}, testWatcherConfig(), scheduler.NewManual(start), zerolog.Nop()).(*watcherService)
	payment := testPayment(start)

	tests := []struct {
		name   string
		mutate func(*domain.ObservedTransaction)
		valid  bool
		check  func(*testing.T, domain.ValidationResult)
	}{
		{
			name:   "all checks pass",
			mutate: func(tx *domain.ObservedTransaction) {},
			valid:  true,
		},
		{
			name: "memo without tag",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.Memo = "unrelated payment"
			},
			valid: false,
			check: func(t *testing.T, r domain.ValidationResult) {
				assert.False(t, r.MemoMatch)
			},
		},
		{
			name: "wrong recipient",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.Transfers = []domain.LedgerTransfer{
					{Account: "0.0.9999", Amount: 2_500_000_000},
				}
			},
			valid: false,
			check: func(t *testing.T, r domain.ValidationResult) {
				assert.False(t, r.RecipientMatch)
				assert.False(t, r.AmountMatch)
			},
		},
		{
			name: "underpayment at tolerance boundary",
			mutate: func(tx *domain.ObservedTransaction) {
				// 2% under 25 coins exactly.
				tx.Transfers = []domain.LedgerTransfer{
					{Account: "0.0.5005", Amount: 2_450_000_000},
				}
			},
			valid: true,
		},
		{
			name: "underpayment past tolerance",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.Transfers = []domain.LedgerTransfer{
					{Account: "0.0.5005", Amount: 2_449_999_999},
				}
			},
			valid: false,
			check: func(t *testing.T, r domain.ValidationResult) {
				assert.False(t, r.AmountMatch)
			},
		},
		{
			name: "split transfers to recipient sum",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.Transfers = []domain.LedgerTransfer{
					{Account: "0.0.5005", Amount: 1_500_000_000},
					{Account: "0.0.5005", Amount: 1_000_000_000},
					{Account: "0.0.1111", Amount: -2_500_000_000},
				}
			},
			valid: true,
		},
		{
			name: "transaction predates payment",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.ConsensusTimestamp = start.Add(-time.Minute)
			},
			valid: false,
			check: func(t *testing.T, r domain.ValidationResult) {
				assert.False(t, r.TimingValid)
			},
		},
		{
			name: "excessive network fee",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.ChargedFee = 50_000_000
			},
			valid: false,
			check: func(t *testing.T, r domain.ValidationResult) {
				assert.False(t, r.FeeSane)
			},
		},
		{
			name: "negative fee",
			mutate: func(tx *domain.ObservedTransaction) {
				tx.ChargedFee = -1
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := matchingTransaction(start)
			tt.mutate(&tx)

			result := svc.validate(payment, tx)
			assert.Equal(t, tt.valid, result.OverallValid)
			if tt.check != nil {
				tt.check(t, result)
			}
		})
	}
}

func TestMemoContainsTag(t *testing.T) {
	assert.True(t, memoContainsTag("order TAG-1 settlement", "TAG-1"))
	assert.True(t, memoContainsTag("TAG-1", "TAG-1"))
	assert.False(t, memoContainsTag("order TAG-2", "TAG-1"))
	// An empty tag never matches; it would confirm against any memo.
	assert.False(t, memoContainsTag("anything", ""))
}
