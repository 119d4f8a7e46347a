package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerTransactionSigned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		kind   Kind
		points int64
		want   int64
	}{
		{name: "earn adds", kind: KindEarn, points: 100, want: 100},
		{name: "spend subtracts its magnitude", kind: KindSpend, points: 60, want: -60},
		{name: "expire subtracts its magnitude", kind: KindExpire, points: 30, want: -30},
		{name: "credit adjust keeps its sign", kind: KindAdjust, points: 25, want: 25},
		{name: "debit adjust keeps its sign", kind: KindAdjust, points: -40, want: -40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transaction := LedgerTransaction{Kind: tt.kind, Points: tt.points}

			require.Equal(t, tt.want, transaction.Signed())
		})
	}

	t.Run("unknown kind fails loudly", func(t *testing.T) {
		transaction := LedgerTransaction{Kind: "bonus", Points: 100}

		require.Panics(t, func() { transaction.Signed() }, "an unknown kind must never silently replay as zero")
	})
}
