// Package schedule derives and inspects installment schedules. Everything here
// is a pure function of its arguments; persistence lives in the ledger.
package schedule

import (
	"fmt"
	"time"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/shopspring/decimal"
)

// Policy turns a start date and an installment count into the ordered list of
// due dates. A deployment uses exactly one policy for every schedule it builds.
type Policy func(start models.Date, count int) []models.Date

const (
	PolicyCalendarMonth = "calendar-month"
	PolicyFixed30Day    = "fixed-30-day"
)

// CalendarMonth places installment i exactly i calendar months after start.
// The day of month is the start's day, clamped to the last day of shorter
// months, so 2024-01-31 yields 2024-02-29 and then 2024-03-31 again.
func CalendarMonth(start models.Date, count int) []models.Date {
	if count <= 0 {
		return nil
	}
	dates := make([]models.Date, count)
	for i := range dates {
		first := time.Date(start.Year, start.Month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		day := min(start.Day, daysIn(first.Year(), first.Month()))
		dates[i] = models.Date{Year: first.Year(), Month: first.Month(), Day: day}
	}
	return dates
}

// FixedInterval steps a fixed number of days between installments.
func FixedInterval(days int) Policy {
	return func(start models.Date, count int) []models.Date {
		if count <= 0 {
			return nil
		}
		dates := make([]models.Date, count)
		for i := range dates {
			dates[i] = start.AddDays(i * days)
		}
		return dates
	}
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicyCalendarMonth:
		return CalendarMonth, nil
	case PolicyFixed30Day:
		return FixedInterval(30), nil
	default:
		return nil, fmt.Errorf("unknown schedule policy %q", name)
	}
}

// GenerateSchedule builds a schedule with the default CalendarMonth policy.
func GenerateSchedule(start models.Date, count int) []models.Date {
	return CalendarMonth(start, count)
}

// InstallmentValue is the default per-installment value, amount/count rounded
// to two decimals. The rounded values may not add up to amount exactly.
func InstallmentValue(amount decimal.Decimal, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(count))).Round(2)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
