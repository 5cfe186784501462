package models

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Customer is one row of the ledger: a customer and the installment plan they repay.
type Customer struct {
	ID               string          // surrogate key, stable across renames
	Name             string          // display name, not unique
	Phone            string          // "+" followed by 10-15 digits
	Amount           decimal.Decimal // total owed
	Installments     int             // number of scheduled installments
	InstallmentValue decimal.Decimal // default value of one installment
	StartDate        Date
	InstallmentDates []Date // ordered schedule, one entry per installment

	// NotificationSent is the legacy per-customer flag; per-installment state
	// lives in NotifiedInstallments.
	NotificationSent bool

	PaidInstallments     []Date
	NotifiedInstallments []Date
	InstallmentValues    map[Date]decimal.Decimal // per-date overrides of InstallmentValue
}

// Clone returns a deep copy, so the copy can be mutated freely.
func (c Customer) Clone() Customer {
	out := c
	out.InstallmentDates = slices.Clone(c.InstallmentDates)
	out.PaidInstallments = slices.Clone(c.PaidInstallments)
	out.NotifiedInstallments = slices.Clone(c.NotifiedInstallments)
	if c.InstallmentValues != nil {
		out.InstallmentValues = make(map[Date]decimal.Decimal, len(c.InstallmentValues))
		for d, v := range c.InstallmentValues {
			out.InstallmentValues[d] = v
		}
	}
	return out
}

func (c Customer) HasInstallment(d Date) bool {
	return slices.Contains(c.InstallmentDates, d)
}

func (c Customer) IsPaid(d Date) bool {
	return slices.Contains(c.PaidInstallments, d)
}

func (c Customer) IsNotified(d Date) bool {
	return slices.Contains(c.NotifiedInstallments, d)
}

// NormalizePhone prefixes a bare number with "+".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}

// CloneAll deep-copies a slice of customers.
func CloneAll(customers []Customer) []Customer {
	out := make([]Customer, len(customers))
	for i, c := range customers {
		out[i] = c.Clone()
	}
	return out
}
