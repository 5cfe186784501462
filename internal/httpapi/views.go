package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/notifier"
	"github.com/HgH7/installment-tracker-2.0/internal/schedule"
)

type customerView struct {
	ID                   string                          `json:"id"`
	Name                 string                          `json:"name"`
	Phone                string                          `json:"phone"`
	Amount               decimal.Decimal                 `json:"amount"`
	Installments         int                             `json:"installments"`
	InstallmentValue     decimal.Decimal                 `json:"installment_value"`
	StartDate            models.Date                     `json:"start_date"`
	InstallmentDates     []models.Date                   `json:"installment_dates"`
	NotificationSent     bool                            `json:"notification_sent"`
	PaidInstallments     []models.Date                   `json:"paid_installments"`
	NotifiedInstallments []models.Date                   `json:"notified_installments"`
	InstallmentValues    map[models.Date]decimal.Decimal `json:"installment_values"`
}

func toCustomerView(c models.Customer) customerView {
	v := customerView{
		ID:                   c.ID,
		Name:                 c.Name,
		Phone:                c.Phone,
		Amount:               c.Amount,
		Installments:         c.Installments,
		InstallmentValue:     c.InstallmentValue,
		StartDate:            c.StartDate,
		InstallmentDates:     c.InstallmentDates,
		NotificationSent:     c.NotificationSent,
		PaidInstallments:     c.PaidInstallments,
		NotifiedInstallments: c.NotifiedInstallments,
		InstallmentValues:    c.InstallmentValues,
	}
	if v.InstallmentDates == nil {
		v.InstallmentDates = []models.Date{}
	}
	if v.PaidInstallments == nil {
		v.PaidInstallments = []models.Date{}
	}
	if v.NotifiedInstallments == nil {
		v.NotifiedInstallments = []models.Date{}
	}
	if v.InstallmentValues == nil {
		v.InstallmentValues = map[models.Date]decimal.Decimal{}
	}
	return v
}

func toCustomerViews(customers []models.Customer) []customerView {
	out := make([]customerView, len(customers))
	for i, c := range customers {
		out[i] = toCustomerView(c)
	}
	return out
}

type dueView struct {
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Date         models.Date     `json:"date"`
	DaysUntil    int             `json:"days_until"`
	Value        decimal.Decimal `json:"value"`
}

func toDueViews(due []notifier.DueInstallment) []dueView {
	out := make([]dueView, len(due))
	for i, d := range due {
		out[i] = dueView{
			CustomerID:   d.Customer.ID,
			CustomerName: d.Customer.Name,
			Phone:        d.Customer.Phone,
			Date:         d.Date,
			DaysUntil:    d.DaysUntil,
			Value:        schedule.EffectiveValue(d.Customer, d.Date),
		}
	}
	return out
}

// customerRequest is the body of customer create and whole-record edit.
type customerRequest struct {
	Name         string          `json:"name" binding:"required"`
	Phone        string          `json:"phone" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments" binding:"required,gt=0"`
	StartDate    models.Date     `json:"start_date"`
}

type patchRequest struct {
	Name             *string          `json:"name"`
	Phone            *string          `json:"phone"`
	Amount           *decimal.Decimal `json:"amount"`
	Installments     *int             `json:"installments"`
	InstallmentValue *decimal.Decimal `json:"installment_value"`
	StartDate        *models.Date     `json:"start_date"`
	InstallmentDates []models.Date    `json:"installment_dates"`
}

// installmentRequest moves and revalues one installment. A missing value
// keeps the installment's current value.
type installmentRequest struct {
	NewDate *models.Date     `json:"new_date"`
	Value   *decimal.Decimal `json:"value"`
}

type remindRequest struct {
	Template string `json:"template"`
}

type notificationSettings struct {
	Enabled  *bool   `json:"enabled"`
	Template *string `json:"template"`
}
