package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		d, err := ParseDate(" 2024-02-29 ")
		require.NoError(t, err)
		assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d)
		assert.Equal(t, "2024-02-29", d.String())
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := ParseDate("29/02/2024")
		assert.Error(t, err)
	})

	t.Run("not a day", func(t *testing.T) {
		_, err := ParseDate("2023-02-29")
		assert.Error(t, err)
	})
}

func TestDate_DaysUntil(t *testing.T) {
	today := MustParseDate("2024-06-01")

	assert.Equal(t, 0, today.DaysUntil(today))
	assert.Equal(t, 2, today.DaysUntil(MustParseDate("2024-06-03")))
	assert.Equal(t, -1, today.DaysUntil(MustParseDate("2024-05-31")))
	assert.Equal(t, 30, today.DaysUntil(MustParseDate("2024-07-01")))
}

func TestDate_AsMapKeyInJSON(t *testing.T) {
	values := map[Date]decimal.Decimal{
		MustParseDate("2024-01-31"): decimal.RequireFromString("100.5"),
	}

	raw, err := json.Marshal(values)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-01-31":"100.5"}`, string(raw))

	var back map[Date]decimal.Decimal
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back[MustParseDate("2024-01-31")].Equal(decimal.RequireFromString("100.5")))
}

func TestCustomer_Clone(t *testing.T) {
	d := MustParseDate("2024-01-31")
	c := Customer{
		Name:              "Sara",
		InstallmentDates:  []Date{d},
		PaidInstallments:  []Date{d},
		InstallmentValues: map[Date]decimal.Decimal{d: decimal.NewFromInt(5)},
	}

	cp := c.Clone()
	cp.PaidInstallments[0] = Date{}
	cp.InstallmentValues[d] = decimal.NewFromInt(9)

	assert.Equal(t, d, c.PaidInstallments[0])
	assert.True(t, c.InstallmentValues[d].Equal(decimal.NewFromInt(5)))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+966500000000", NormalizePhone("966500000000"))
	assert.Equal(t, "+966500000000", NormalizePhone("+966500000000"))
	assert.Equal(t, "", NormalizePhone("  "))
}
