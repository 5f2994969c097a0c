package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places every stored amount is rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount half-away-from-zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PercentToRate converts a percentage (2.5) to a fraction (0.025).
func PercentToRate(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	return MaxDecimal(d, decimal.Zero)
}

// TruncateToDate drops the clock part, keeping the calendar date in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from start to end (negative when end is earlier).
func DaysBetween(start, end time.Time) int {
	s := TruncateToDate(start)
	e := TruncateToDate(end)
	return int(e.Sub(s).Hours() / 24)
}

// AddDays moves a date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return TruncateToDate(t).AddDate(0, 0, n)
}

// AddMonthsClamped moves a date by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = TruncateToDate(t)
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, time.UTC)
}
