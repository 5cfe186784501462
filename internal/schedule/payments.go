package schedule

import (
	"fmt"
	"strings"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EffectiveValue is the override recorded for d, or the customer's default value.
func EffectiveValue(c models.Customer, d models.Date) decimal.Decimal {
	if v, ok := c.InstallmentValues[d]; ok {
		return v
	}
	return c.InstallmentValue
}

// Summarize computes payment progress for a customer.
//
// PaidAmount sums the effective value of every paid date. TotalAmount is the
// agreed Amount adjusted by each override's difference from the default value,
// so the rounding remainder of amount/count stays with the customer's total
// instead of disappearing. RemainingAmount is TotalAmount minus PaidAmount.
func Summarize(c models.Customer) models.Summary {
	s := models.Summary{
		Total:       len(c.InstallmentDates),
		TotalAmount: c.Amount,
		PaidAmount:  decimal.Zero,
	}
	for _, d := range c.InstallmentDates {
		if v, ok := c.InstallmentValues[d]; ok {
			s.TotalAmount = s.TotalAmount.Add(v.Sub(c.InstallmentValue))
		}
		if c.IsPaid(d) {
			s.PaidCount++
			s.PaidAmount = s.PaidAmount.Add(EffectiveValue(c, d))
		}
	}
	s.RemainingAmount = s.TotalAmount.Sub(s.PaidAmount)
	return s
}

// Classify reports whether the installment on d is paid, payable or still in the future.
func Classify(c models.Customer, d, today models.Date) models.InstallmentStatus {
	switch {
	case c.IsPaid(d):
		return models.StatusPaid
	case !d.After(today):
		return models.StatusPayable
	default:
		return models.StatusFuture
	}
}

// Statement lists every scheduled installment with its value and status.
func Statement(c models.Customer, today models.Date) []models.Installment {
	out := make([]models.Installment, 0, len(c.InstallmentDates))
	for _, d := range c.InstallmentDates {
		out = append(out, models.Installment{
			Date:     d,
			Value:    EffectiveValue(c, d),
			Status:   Classify(c, d, today),
			Notified: c.IsNotified(d),
		})
	}
	return out
}

// NewCustomerInput carries what a clerk types in when registering a customer.
type NewCustomerInput struct {
	Name         string
	Phone        string
	Amount       decimal.Decimal
	Installments int
	StartDate    models.Date
}

// NewCustomer computes a fresh customer record: surrogate id, default
// installment value and the schedule produced by policy.
func NewCustomer(in NewCustomerInput, policy Policy) (models.Customer, error) {
	if policy == nil {
		policy = CalendarMonth
	}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return models.Customer{}, fmt.Errorf("name is required")
	case !in.Amount.IsPositive():
		return models.Customer{}, fmt.Errorf("amount must be positive")
	case in.Installments <= 0:
		return models.Customer{}, fmt.Errorf("installments must be positive")
	case in.StartDate.IsZero():
		return models.Customer{}, fmt.Errorf("start date is required")
	}

	return models.Customer{
		ID:                   uuid.NewString(),
		Name:                 name,
		Phone:                models.NormalizePhone(in.Phone),
		Amount:               in.Amount,
		Installments:         in.Installments,
		InstallmentValue:     InstallmentValue(in.Amount, in.Installments),
		StartDate:            in.StartDate,
		InstallmentDates:     policy(in.StartDate, in.Installments),
		PaidInstallments:     []models.Date{},
		NotifiedInstallments: []models.Date{},
		InstallmentValues:    map[models.Date]decimal.Decimal{},
	}, nil
}
