package core

import "github.com/shopspring/decimal"

// Balance is derived from the full set of transactions on every read.
type Balance struct {
	Income  decimal.Decimal `json:"income"`
	Outcome decimal.Decimal `json:"outcome"`
	Total   decimal.Decimal `json:"total"`
}

// ComputeBalance sums transaction values per type. A type without
// transactions contributes zero. Total is always Income - Outcome.
func ComputeBalance(transactions []Transaction) Balance {
	income := totalByType(transactions, Income)
	outcome := totalByType(transactions, Outcome)
	return Balance{
		Income:  income,
		Outcome: outcome,
		Total:   income.Sub(outcome),
	}
}

func totalByType(transactions []Transaction, t TransactionType) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range transactions {
		if tx.Type == t {
			sum = sum.Add(tx.Value)
		}
	}
	return sum
}
