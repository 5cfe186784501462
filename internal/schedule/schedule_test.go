package schedule

import (
	"testing"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dates(ss ...string) []models.Date {
	out := make([]models.Date, len(ss))
	for i, s := range ss {
		out[i] = models.MustParseDate(s)
	}
	return out
}

func TestCalendarMonth(t *testing.T) {
	t.Run("month end clamps without drift", func(t *testing.T) {
		got := GenerateSchedule(models.MustParseDate("2024-01-31"), 3)
		assert.Equal(t, dates("2024-01-31", "2024-02-29", "2024-03-31"), got)
	})

	t.Run("non leap february", func(t *testing.T) {
		got := CalendarMonth(models.MustParseDate("2023-01-30"), 3)
		assert.Equal(t, dates("2023-01-30", "2023-02-28", "2023-03-30"), got)
	})

	t.Run("december rolls year", func(t *testing.T) {
		got := CalendarMonth(models.MustParseDate("2024-11-15"), 3)
		assert.Equal(t, dates("2024-11-15", "2024-12-15", "2025-01-15"), got)
	})

	t.Run("length and order", func(t *testing.T) {
		starts := dates("2024-01-01", "2024-01-29", "2024-05-31", "2025-12-31")
		for _, start := range starts {
			for count := 1; count <= 40; count++ {
				got := CalendarMonth(start, count)
				require.Len(t, got, count)
				assert.Equal(t, start, got[0])
				for i := 1; i < len(got); i++ {
					assert.True(t, got[i-1].Before(got[i]), "%v before %v", got[i-1], got[i])
					monthGap := (got[i].Year-got[i-1].Year)*12 + int(got[i].Month) - int(got[i-1].Month)
					assert.Equal(t, 1, monthGap)
				}
			}
		}
	})

	t.Run("non positive count", func(t *testing.T) {
		assert.Empty(t, CalendarMonth(models.MustParseDate("2024-01-01"), 0))
	})
}

func TestFixedInterval(t *testing.T) {
	got := FixedInterval(30)(models.MustParseDate("2024-01-31"), 3)
	assert.Equal(t, dates("2024-01-31", "2024-03-01", "2024-03-31"), got)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, dates("2024-01-31", "2024-02-29"), p(models.MustParseDate("2024-01-31"), 2))

	_, err = PolicyByName("weekly")
	assert.Error(t, err)
}

func TestInstallmentValue(t *testing.T) {
	t.Run("rounds to cents", func(t *testing.T) {
		v := InstallmentValue(decimal.RequireFromString("1000.00"), 3)
		assert.Equal(t, "333.33", v.StringFixed(2))
	})

	t.Run("rounding error is bounded", func(t *testing.T) {
		half := decimal.RequireFromString("0.005")
		for _, amount := range []string{"1000", "999.99", "1", "12345.67", "0.1"} {
			for count := 1; count <= 24; count++ {
				a := decimal.RequireFromString(amount)
				v := InstallmentValue(a, count)
				diff := v.Mul(decimal.NewFromInt(int64(count))).Sub(a).Abs()
				assert.True(t, diff.LessThanOrEqual(half.Mul(decimal.NewFromInt(int64(count)))),
					"amount %s count %d diff %s", amount, count, diff)
			}
		}
	})
}

func sampleCustomer() models.Customer {
	c, _ := NewCustomer(NewCustomerInput{
		Name:         "Sara",
		Phone:        "966500000001",
		Amount:       decimal.RequireFromString("1000.00"),
		Installments: 3,
		StartDate:    models.MustParseDate("2024-01-31"),
	}, nil)
	return c
}

func TestNewCustomer(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := sampleCustomer()

		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "+966500000001", c.Phone)
		assert.Equal(t, "333.33", c.InstallmentValue.StringFixed(2))
		assert.Equal(t, dates("2024-01-31", "2024-02-29", "2024-03-31"), c.InstallmentDates)
		assert.Empty(t, c.PaidInstallments)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := NewCustomer(NewCustomerInput{Name: "x", Amount: decimal.Zero, Installments: 1,
			StartDate: models.MustParseDate("2024-01-01")}, nil)
		assert.Error(t, err)

		_, err = NewCustomer(NewCustomerInput{Name: "x", Amount: decimal.NewFromInt(10), Installments: 0,
			StartDate: models.MustParseDate("2024-01-01")}, nil)
		assert.Error(t, err)
	})
}

func TestSummarize(t *testing.T) {
	t.Run("two of three paid with defaults", func(t *testing.T) {
		c := sampleCustomer()
		c.PaidInstallments = dates("2024-01-31", "2024-02-29")

		s := Summarize(c)

		assert.Equal(t, 3, s.Total)
		assert.Equal(t, 2, s.PaidCount)
		assert.Equal(t, "666.66", s.PaidAmount.StringFixed(2))
		assert.Equal(t, "333.34", s.RemainingAmount.StringFixed(2))
	})

	t.Run("overrides change totals", func(t *testing.T) {
		c := sampleCustomer()
		c.InstallmentValues[models.MustParseDate("2024-01-31")] = decimal.RequireFromString("500")
		c.PaidInstallments = dates("2024-01-31")

		s := Summarize(c)

		assert.Equal(t, "500.00", s.PaidAmount.StringFixed(2))
		assert.Equal(t, "1166.67", s.TotalAmount.StringFixed(2))
		assert.Equal(t, "666.67", s.RemainingAmount.StringFixed(2))
	})
}

func TestClassify(t *testing.T) {
	c := sampleCustomer()
	c.PaidInstallments = dates("2024-01-31")
	today := models.MustParseDate("2024-02-29")

	assert.Equal(t, models.StatusPaid, Classify(c, models.MustParseDate("2024-01-31"), today))
	assert.Equal(t, models.StatusPayable, Classify(c, models.MustParseDate("2024-02-29"), today))
	assert.Equal(t, models.StatusFuture, Classify(c, models.MustParseDate("2024-03-31"), today))
	assert.True(t, models.StatusPayable.CanMarkPaid())
	assert.False(t, models.StatusFuture.CanMarkPaid())

	st := Statement(c, today)
	require.Len(t, st, 3)
	assert.Equal(t, models.StatusPaid, st[0].Status)
	assert.Equal(t, "333.33", st[2].Value.StringFixed(2))
}

func TestEffectiveValue(t *testing.T) {
	c := sampleCustomer()
	d := models.MustParseDate("2024-02-29")
	c.InstallmentValues[d] = decimal.RequireFromString("10")

	assert.Equal(t, "10", EffectiveValue(c, d).String())
	assert.Equal(t, "333.33", EffectiveValue(c, models.MustParseDate("2024-03-31")).StringFixed(2))
}
