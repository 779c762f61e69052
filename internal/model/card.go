package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/common"
)

// DefaultCardColor is assigned to cards created without a color.
const DefaultCardColor = "#6366f1"

var lastDigitsPattern = regexp.MustCompile(`^\d{1,4}$`)

// Card is a payment card transactions can be tagged with.
type Card struct {
	CreatedAt      time.Time
	InitialBalance decimal.Decimal
	Name           string
	LastDigits     string
	Color          string
	ID             int64
	OwnerID        int64
}

// CardBalance is a card with its derived running balance.
type CardBalance struct {
	Card
	TotalIncome    decimal.Decimal
	TotalExpense   decimal.Decimal
	CurrentBalance decimal.Decimal
}

// Validate checks the card fields.
func (c *Card) Validate() error {
	if c.OwnerID == 0 {
		return common.Validationf("owner is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return common.Validationf("card name is required")
	}
	if c.LastDigits != "" && !lastDigitsPattern.MatchString(c.LastDigits) {
		return common.Validationf("last digits must be at most 4 numbers")
	}
	return nil
}

// Label renders the card for menus, e.g. "Visa •1234".
func (c *Card) Label() string {
	if c.LastDigits == "" {
		return c.Name
	}
	return c.Name + " •" + c.LastDigits
}

// CardUpdate holds the optional fields of a card update.
type CardUpdate struct {
	Name           *string
	LastDigits     *string
	Color          *string
	InitialBalance *decimal.Decimal
}
