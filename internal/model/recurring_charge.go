package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
)

// DefaultRecurringCategory is used for charges created without a category.
const DefaultRecurringCategory = "recurrent"

// RecurringCharge is a template that materializes one transaction per period.
type RecurringCharge struct {
	NextDueDate calendar.Date
	CreatedAt   time.Time
	Amount      decimal.Decimal
	CardID      *int64
	Description string
	Category    string
	Kind        Kind
	Cadence     calendar.Cadence
	ID          int64
	OwnerID     int64
	Active      bool
}

// EffectiveKind returns the charge kind, treating an unset kind as an expense.
func (c *RecurringCharge) EffectiveKind() Kind {
	if c.Kind == "" {
		return KindExpense
	}
	return c.Kind
}

// EffectiveCategory returns the charge category or the recurring default.
func (c *RecurringCharge) EffectiveCategory() string {
	if strings.TrimSpace(c.Category) == "" {
		return DefaultRecurringCategory
	}
	return c.Category
}

// ApplyDefaults fills the optional fields the way new charges expect.
func (c *RecurringCharge) ApplyDefaults() {
	c.Kind = c.EffectiveKind()
	c.Category = c.EffectiveCategory()
}

// Validate checks the fields required before a charge can be stored.
func (c *RecurringCharge) Validate() error {
	if c.OwnerID == 0 {
		return common.Validationf("owner is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return common.Validationf("description is required")
	}
	if !c.Amount.IsPositive() {
		return common.Validationf("amount must be greater than 0")
	}
	if c.Kind != "" && !c.Kind.Valid() {
		return common.Validationf("kind must be income or expense")
	}
	if !c.Cadence.Valid() {
		return common.Validationf("frequency must be daily, weekly, monthly or yearly")
	}
	if !c.NextDueDate.IsValid() {
		return common.Validationf("next due date is required")
	}
	return nil
}
