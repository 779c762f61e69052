// Package calendar provides calendar-day arithmetic for recurring schedules and
// installment plans. Dates carry no time component and no timezone: "today" is
// the host process's local calendar day.
package calendar

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/finscale/internal/common"
)

// Date is a calendar date without a time component.
type Date = civil.Date

// Cadence is the unit of a recurrence period.
type Cadence string

// Supported cadences.
const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
	Yearly  Cadence = "yearly"
)

// Cadences lists every supported cadence in display order.
var Cadences = []Cadence{Daily, Weekly, Monthly, Yearly}

// Valid reports whether c is a supported cadence.
func (c Cadence) Valid() bool {
	switch c {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// ParseCadence validates a cadence name.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown cadence %q", common.ErrInvalidArgument, s)
	}
	return c, nil
}

// Clock reports the current calendar day.
type Clock interface {
	Today() Date
}

// SystemClock reads the host's local calendar day.
type SystemClock struct{}

// Today implements Clock.
func (SystemClock) Today() Date {
	return Today()
}

// FixedClock always reports the same day.
type FixedClock struct {
	Date Date
}

// Today implements Clock.
func (c FixedClock) Today() Date {
	return c.Date
}

// Today returns the current local calendar date.
func Today() Date {
	return civil.DateOf(time.Now())
}

// New builds a date from its parts without normalization.
func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", common.ErrInvalidArgument, s)
	}
	return d, nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths moves d by n calendar months keeping the day of month. When the
// target month is shorter, the result is clamped to its last day, so Jan 31
// plus one month is Feb 28 (or Feb 29 in a leap year).
func AddMonths(d Date, n int) Date {
	total := int(d.Month) - 1 + n
	year := d.Year + floorDiv(total, 12)
	month := time.Month(total-floorDiv(total, 12)*12 + 1)

	day := d.Day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

// AdvanceDate returns the next period start after d for the given cadence.
func AdvanceDate(d Date, cadence Cadence) (Date, error) {
	switch cadence {
	case Daily:
		return d.AddDays(1), nil
	case Weekly:
		return d.AddDays(7), nil
	case Monthly:
		return AddMonths(d, 1), nil
	case Yearly:
		return AddMonths(d, 12), nil
	default:
		return Date{}, fmt.Errorf("%w: unknown cadence %q", common.ErrInvalidArgument, cadence)
	}
}

// OnOrBefore reports whether a <= b.
func OnOrBefore(a, b Date) bool {
	return !a.After(b)
}

// Display formats d for chat messages.
func Display(d Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
