// Package money provides cent-accurate amount handling.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/common"
)

// Cents is the number of fractional digits kept for stored amounts.
const Cents = 2

// SplitAmount divides total into count parts. Every part but the last is the
// per-part share rounded down to cents; the last part absorbs the remainder so
// the parts always sum to total exactly.
func SplitAmount(total decimal.Decimal, count int) ([]decimal.Decimal, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1, got %d", common.ErrInvalidArgument, count)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be positive, got %s", common.ErrInvalidArgument, total)
	}

	n := decimal.NewFromInt(int64(count))
	base := total.Div(n).RoundFloor(Cents)

	parts := make([]decimal.Decimal, count)
	for i := 0; i < count-1; i++ {
		parts[i] = base
	}
	parts[count-1] = total.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))

	return parts, nil
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ParseAmount reads a user-entered positive amount. Either ',' or '.' is
// accepted as the fractional separator; the result is rounded to cents.
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return decimal.Zero, common.Validationf("amount is required")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, common.Validationf("invalid amount %q", text)
	}

	amount = amount.Round(Cents)
	if !amount.IsPositive() {
		return decimal.Zero, common.Validationf("amount must be greater than 0")
	}
	return amount, nil
}

// Format renders an amount with two decimal places.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(Cents)
}
