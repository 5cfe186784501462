package ledger

import (
	"regexp"
	"strings"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

var phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

// Validate checks a customer record before it is written. Besides the field
// formats it enforces that the schedule has one date per installment and that
// paid, notified and override dates all belong to the schedule.
func Validate(c models.Customer) error {
	verr := &ValidationError{Customer: c.Name}

	if strings.TrimSpace(c.Name) == "" {
		verr.add("name", "name is required")
	}
	switch {
	case c.Phone == "":
		verr.add("phone", "phone is required")
	case !phonePattern.MatchString(c.Phone):
		verr.add("phone", "phone must be 10 to 15 digits, optionally prefixed with +")
	}
	if !c.Amount.IsPositive() {
		verr.add("amount", "amount must be greater than zero")
	}
	if c.Installments <= 0 {
		verr.add("installments", "installments must be greater than zero")
	}
	if c.InstallmentValue.IsNegative() {
		verr.add("installment_value", "installment value must not be negative")
	}
	if c.StartDate.IsZero() {
		verr.add("start_date", "start date is required")
	}

	if len(c.InstallmentDates) != c.Installments {
		verr.add("installment_dates", "schedule must hold one date per installment")
	}
	seen := make(map[models.Date]bool, len(c.InstallmentDates))
	for _, d := range c.InstallmentDates {
		if seen[d] {
			verr.add("installment_dates", "duplicate installment date "+d.String())
		}
		seen[d] = true
	}
	for _, d := range c.PaidInstallments {
		if !seen[d] {
			verr.add("paid_installments", "paid date "+d.String()+" is not scheduled")
		}
	}
	for _, d := range c.NotifiedInstallments {
		if !seen[d] {
			verr.add("notified_installments", "notified date "+d.String()+" is not scheduled")
		}
	}
	for d, v := range c.InstallmentValues {
		if !seen[d] {
			verr.add("installment_values", "override date "+d.String()+" is not scheduled")
		}
		if v.IsNegative() {
			verr.add("installment_values", "override for "+d.String()+" is negative")
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
