package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() models.Customer {
	d1, d2 := models.MustParseDate("2024-01-31"), models.MustParseDate("2024-02-29")
	return models.Customer{
		ID:                   "c-1",
		Name:                 "Sara, Al-Harbi",
		Phone:                "+966500000001",
		Amount:               decimal.RequireFromString("1000"),
		Installments:         2,
		InstallmentValue:     decimal.RequireFromString("500"),
		StartDate:            d1,
		InstallmentDates:     []models.Date{d1, d2},
		NotificationSent:     true,
		PaidInstallments:     []models.Date{d1},
		NotifiedInstallments: []models.Date{d2},
		InstallmentValues:    map[models.Date]decimal.Decimal{d2: decimal.RequireFromString("450.5")},
	}
}

func TestWriteReadTable(t *testing.T) {
	// arrange
	var buf bytes.Buffer

	// act
	require.NoError(t, WriteTable(&buf, []models.Customer{sample()}))
	got, err := ReadTable(&buf)

	// assert
	require.NoError(t, err)
	require.Len(t, got, 1)
	want := sample()
	assert.Equal(t, want.ID, got[0].ID)
	assert.Equal(t, want.Name, got[0].Name)
	assert.Equal(t, want.InstallmentDates, got[0].InstallmentDates)
	assert.Equal(t, want.PaidInstallments, got[0].PaidInstallments)
	assert.Equal(t, want.NotifiedInstallments, got[0].NotifiedInstallments)
	assert.True(t, got[0].NotificationSent)
	assert.True(t, got[0].InstallmentValues[models.MustParseDate("2024-02-29")].Equal(decimal.RequireFromString("450.5")))
}

func TestEncodeRow_Cells(t *testing.T) {
	row, err := EncodeRow(sample())
	require.NoError(t, err)

	assert.Equal(t, "2024-01-31;2024-02-29", row[7])
	assert.Equal(t, "True", row[8])
	assert.Equal(t, `["2024-01-31"]`, row[9])
	assert.Equal(t, `{"2024-02-29":"450.5"}`, row[11])
	assert.Equal(t, "500.00", row[5])
}

func TestReadTable_Legacy(t *testing.T) {
	t.Run("python literals and no id", func(t *testing.T) {
		// arrange
		in := "Name,Phone,Amount,Installments,Installment Value,Start Date,Installment Dates,Notification Sent,Paid_Installments,Notified_Installments,Installment_Values\n" +
			`Ali,966500000002,1000.0,3,333.33,2024-01-31,2024-01-31;2024-02-29;2024-03-31,False,"['2024-01-31']",[],"{'2024-02-29': 300.0}"` + "\n"

		// act
		got, err := ReadTable(strings.NewReader(in))

		// assert
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "+966500000002", got[0].Phone)
		assert.NotEmpty(t, got[0].ID)
		assert.Equal(t, []models.Date{models.MustParseDate("2024-01-31")}, got[0].PaidInstallments)
		assert.Equal(t, "300", got[0].InstallmentValues[models.MustParseDate("2024-02-29")].String())

		again, err := ReadTable(strings.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, got[0].ID, again[0].ID, "derived id must be stable")
	})

	t.Run("optional columns missing", func(t *testing.T) {
		in := "Name,Phone,Amount,Installments,Installment Value,Start Date,Installment Dates\n" +
			"Ali,+966500000002,100,1,100,2024-01-31,2024-01-31\n"

		got, err := ReadTable(strings.NewReader(in))

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].PaidInstallments)
		assert.NotNil(t, got[0].InstallmentValues)
	})
}

func TestReadTable_Corrupt(t *testing.T) {
	header := strings.Join(Columns, ",") + "\n"

	cases := map[string]string{
		"bad_amount":   header + `id,Ali,+966500000002,abc,1,100,2024-01-31,2024-01-31,False,[],[],{}` + "\n",
		"bad_paid":     header + `id,Ali,+966500000002,100,1,100,2024-01-31,2024-01-31,False,[oops,[],{}` + "\n",
		"bad_date":     header + `id,Ali,+966500000002,100,1,100,2024-01-31,2024-13-31,False,[],[],{}` + "\n",
		"short_row":    header + `id,Ali` + "\n",
		"missing_cols": "Name,Phone\nAli,+966500000002\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(in))
			assert.ErrorIs(t, err, interfaces.ErrCorruptRecord)
		})
	}
}

func TestReadTable_Empty(t *testing.T) {
	got, err := ReadTable(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}
