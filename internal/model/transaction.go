// Package model defines the ledger records shared by the stores and the core engines.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
)

// Kind tells whether money comes in or goes out.
type Kind string

const (
	// KindIncome is money received.
	KindIncome Kind = "income"
	// KindExpense is money spent.
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: kind must be %q or %q", common.ErrInvalidArgument, KindIncome, KindExpense)
	}
	return k, nil
}

// Label returns a human-readable name for the kind.
func (k Kind) Label() string {
	if k == KindIncome {
		return "Income"
	}
	return "Expense"
}

// Installment places a transaction inside an installment group.
type Installment struct {
	GroupID  string
	Sequence int
	Total    int
}

// Transaction is a single ledger entry.
type Transaction struct {
	Date        calendar.Date
	CreatedAt   time.Time
	Amount      decimal.Decimal
	Installment *Installment
	CardID      *int64
	Description string
	Category    string
	Kind        Kind
	ID          int64
	OwnerID     int64
}

// Validate checks the fields required before a transaction can be stored.
func (t *Transaction) Validate() error {
	if t.OwnerID == 0 {
		return common.Validationf("owner is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return common.Validationf("description is required")
	}
	if !t.Amount.IsPositive() {
		return common.Validationf("amount must be greater than 0")
	}
	if !t.Kind.Valid() {
		return common.Validationf("kind must be income or expense")
	}
	if strings.TrimSpace(t.Category) == "" {
		return common.Validationf("category is required")
	}
	if !t.Date.IsValid() {
		return common.Validationf("date is required")
	}
	if inst := t.Installment; inst != nil {
		if inst.GroupID == "" {
			return common.Validationf("installment group id is required")
		}
		if inst.Total < 1 || inst.Sequence < 1 || inst.Sequence > inst.Total {
			return common.Validationf("installment %d/%d is out of range", inst.Sequence, inst.Total)
		}
	}
	return nil
}

// InstallmentLabel renders " (i/N)" for grouped transactions with more than one member.
func (t *Transaction) InstallmentLabel() string {
	if t.Installment == nil || t.Installment.Total <= 1 {
		return ""
	}
	return fmt.Sprintf(" (%d/%d)", t.Installment.Sequence, t.Installment.Total)
}

// SignedAmount returns the amount with expenses negated.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
