package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func tx(t TransactionType, value string) Transaction {
	return Transaction{Type: t, Value: decimal.RequireFromString(value)}
}

func TestComputeBalance(t *testing.T) {
	got := ComputeBalance([]Transaction{
		tx(Income, "1000"),
		tx(Outcome, "300"),
		tx(Income, "200"),
	})

	want := map[string]string{"income": "1200", "outcome": "300", "total": "900"}
	check := map[string]decimal.Decimal{"income": got.Income, "outcome": got.Outcome, "total": got.Total}
	for k, v := range want {
		if !check[k].Equal(decimal.RequireFromString(v)) {
			t.Errorf("%s = %s, want %s", k, check[k], v)
		}
	}
}

func TestComputeBalanceMissingTypes(t *testing.T) {
	cases := []struct {
		name string
		txs  []Transaction
	}{
		{"empty", nil},
		{"only outcome", []Transaction{tx(Outcome, "10.50"), tx(Outcome, "0.25")}},
		{"only income", []Transaction{tx(Income, "42")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ComputeBalance(tc.txs)
			if !b.Total.Equal(b.Income.Sub(b.Outcome)) {
				t.Fatalf("total %s != income %s - outcome %s", b.Total, b.Income, b.Outcome)
			}
			hasIncome, hasOutcome := false, false
			for _, x := range tc.txs {
				hasIncome = hasIncome || x.Type == Income
				hasOutcome = hasOutcome || x.Type == Outcome
			}
			if !hasIncome && !b.Income.IsZero() {
				t.Fatalf("income = %s, want 0", b.Income)
			}
			if !hasOutcome && !b.Outcome.IsZero() {
				t.Fatalf("outcome = %s, want 0", b.Outcome)
			}
		})
	}
}

func TestComputeBalanceIsExact(t *testing.T) {
	// 0.1 added ten times drifts with float64.
	var txs []Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, tx(Income, "0.1"))
	}
	txs = append(txs, tx(Outcome, "0.3"))

	b := ComputeBalance(txs)
	if !b.Income.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("income = %s, want 1", b.Income)
	}
	if !b.Total.Equal(decimal.RequireFromString("0.7")) {
		t.Fatalf("total = %s, want 0.7", b.Total)
	}
}
