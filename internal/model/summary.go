package model

import "github.com/shopspring/decimal"

// Summary aggregates an owner's ledger.
type Summary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
}

// Summarize totals transactions by kind.
func Summarize(transactions []Transaction) Summary {
	s := Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Balance:      decimal.Zero,
	}
	for i := range transactions {
		t := &transactions[i]
		switch t.Kind {
		case KindIncome:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case KindExpense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
		s.Balance = s.Balance.Add(t.SignedAmount())
	}
	return s
}
