package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

func d(s string) models.Date { return models.MustParseDate(s) }

func TestWriteWorkbook(t *testing.T) {
	// arrange
	c := models.Customer{
		ID:               "c1",
		Name:             "Ahmed",
		Phone:            "+966500000001",
		Amount:           decimal.NewFromInt(1000),
		Installments:     3,
		InstallmentValue: decimal.RequireFromString("333.33"),
		StartDate:        d("2024-05-01"),
		InstallmentDates: []models.Date{d("2024-05-01"), d("2024-06-01"), d("2024-07-01")},
		NotificationSent: true,
		PaidInstallments: []models.Date{d("2024-05-01")},
	}
	var buf bytes.Buffer

	// act
	err := WriteWorkbook(&buf, []models.Customer{c}, d("2024-06-10"))

	// assert
	require.NoError(t, err)
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Headers, rows[0])
	row := rows[1]
	assert.Equal(t, "Ahmed", row[0])
	assert.Equal(t, "1000", row[2])
	assert.Equal(t, "3", row[3])
	assert.Equal(t, "333.33", row[4])
	assert.Equal(t, "2024-05-01; 2024-06-01; 2024-07-01", row[6])
	assert.Equal(t, "نعم", row[7])
	assert.Equal(t, "1/3", row[8])
	assert.Equal(t, "666.67", row[10])
	assert.Equal(t, "2024-07-01", row[11])
}

func TestWriteWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteWorkbook(&buf, nil, d("2024-06-10")))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNextDue(t *testing.T) {
	c := models.Customer{
		InstallmentDates: []models.Date{d("2024-05-01"), d("2024-06-01")},
		PaidInstallments: []models.Date{},
	}

	assert.Equal(t, "2024-06-01", nextDue(c, d("2024-05-15")))
	assert.Equal(t, "2024-05-01", nextDue(c, d("2024-07-01")))

	c.PaidInstallments = c.InstallmentDates
	assert.Equal(t, "", nextDue(c, d("2024-07-01")))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "customers_export_20240610.xlsx", FileName(d("2024-06-10")))
}
