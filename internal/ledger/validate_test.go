package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.Customer)
		fields []string
	}{
		{name: "ok", mutate: func(c *models.Customer) {}},
		{name: "phone without plus", mutate: func(c *models.Customer) { c.Phone = "966500000001" }},
		{name: "missing name", mutate: func(c *models.Customer) { c.Name = "" }, fields: []string{"name"}},
		{name: "short phone", mutate: func(c *models.Customer) { c.Phone = "+12345" }, fields: []string{"phone"}},
		{name: "missing phone", mutate: func(c *models.Customer) { c.Phone = "" }, fields: []string{"phone"}},
		{name: "zero amount", mutate: func(c *models.Customer) { c.Amount = decimal.Zero }, fields: []string{"amount"}},
		{
			name:   "schedule length",
			mutate: func(c *models.Customer) { c.InstallmentDates = c.InstallmentDates[:2] },
			fields: []string{"installment_dates"},
		},
		{
			name:   "duplicate date",
			mutate: func(c *models.Customer) { c.InstallmentDates[2] = c.InstallmentDates[1] },
			fields: []string{"installment_dates"},
		},
		{
			name:   "paid date not scheduled",
			mutate: func(c *models.Customer) { c.PaidInstallments = []models.Date{d("2024-06-15")} },
			fields: []string{"paid_installments"},
		},
		{
			name:   "notified date not scheduled",
			mutate: func(c *models.Customer) { c.NotifiedInstallments = []models.Date{d("2024-06-15")} },
			fields: []string{"notified_installments"},
		},
		{
			name: "negative override",
			mutate: func(c *models.Customer) {
				c.InstallmentValues = map[models.Date]decimal.Decimal{d("2024-06-01"): decimal.NewFromInt(-5)}
			},
			fields: []string{"installment_values"},
		},
		{
			name:   "missing start date",
			mutate: func(c *models.Customer) { c.StartDate = models.Date{} },
			fields: []string{"start_date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCustomer(t, "Ahmed", "900", 3)
			tt.mutate(&c)

			err := Validate(c)

			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.fields, verr.Fields)
			if c.Name != "" {
				assert.Contains(t, err.Error(), c.Name)
			}
		})
	}
}
