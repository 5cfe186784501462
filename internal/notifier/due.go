package notifier

import "github.com/HgH7/installment-tracker-2.0/internal/models"

// DueInstallment is an installment a reminder should go out for.
type DueInstallment struct {
	Customer  models.Customer
	Date      models.Date
	DaysUntil int
}

// DueInstallments selects the unpaid, not yet reminded installments falling
// due between today and today+window days, both inclusive. Results keep
// ledger order, then schedule order.
func DueInstallments(customers []models.Customer, today models.Date, window int) []DueInstallment {
	var due []DueInstallment
	for _, c := range customers {
		for _, d := range c.InstallmentDates {
			if c.IsPaid(d) || c.IsNotified(d) {
				continue
			}
			days := today.DaysUntil(d)
			if days < 0 || days > window {
				continue
			}
			due = append(due, DueInstallment{Customer: c, Date: d, DaysUntil: days})
		}
	}
	return due
}
