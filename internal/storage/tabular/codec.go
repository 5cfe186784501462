// Package tabular encodes customers as rows of the ledger table. The CSV file
// backend, the SQL backend and SQL snapshots all share this one encoding.
package tabular

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ColID                   = "ID"
	ColName                 = "Name"
	ColPhone                = "Phone"
	ColAmount               = "Amount"
	ColInstallments         = "Installments"
	ColInstallmentValue     = "Installment Value"
	ColStartDate            = "Start Date"
	ColInstallmentDates     = "Installment Dates"
	ColNotificationSent     = "Notification Sent"
	ColPaidInstallments     = "Paid_Installments"
	ColNotifiedInstallments = "Notified_Installments"
	ColInstallmentValues    = "Installment_Values"
)

// Columns is the header of every table written by this package.
var Columns = []string{
	ColID, ColName, ColPhone, ColAmount, ColInstallments, ColInstallmentValue, ColStartDate,
	ColInstallmentDates, ColNotificationSent, ColPaidInstallments, ColNotifiedInstallments,
	ColInstallmentValues,
}

// requiredColumns must be present in a header for the table to be readable.
// The remaining columns default when missing, which lets files written before
// those columns existed load cleanly.
var requiredColumns = []string{
	ColName, ColPhone, ColAmount, ColInstallments, ColInstallmentValue, ColStartDate, ColInstallmentDates,
}

// idNamespace seeds deterministic ids for rows stored without one.
var idNamespace = uuid.MustParse("6f1d7c3e-3c1b-4e55-9a5e-2f0b8d7e4a10")

// Header maps column names to their position in a row.
type Header map[string]int

// NewHeader indexes a header row and checks the required columns exist.
func NewHeader(names []string) (Header, error) {
	h := make(Header, len(names))
	for i, n := range names {
		h[strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header is missing columns %s", interfaces.ErrCorruptRecord, strings.Join(missing, ", "))
	}
	return h, nil
}

func (h Header) cell(record []string, col string) (string, bool) {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// EncodeRow renders a customer in Columns order.
func EncodeRow(c models.Customer) ([]string, error) {
	paid, err := encodeDates(c.PaidInstallments)
	if err != nil {
		return nil, err
	}
	notified, err := encodeDates(c.NotifiedInstallments)
	if err != nil {
		return nil, err
	}
	values := "{}"
	if len(c.InstallmentValues) > 0 {
		raw, err := json.Marshal(c.InstallmentValues)
		if err != nil {
			return nil, fmt.Errorf("encode installment values: %w", err)
		}
		values = string(raw)
	}

	scheduled := make([]string, len(c.InstallmentDates))
	for i, d := range c.InstallmentDates {
		scheduled[i] = d.String()
	}

	return []string{
		c.ID,
		c.Name,
		c.Phone,
		c.Amount.String(),
		strconv.Itoa(c.Installments),
		c.InstallmentValue.StringFixed(2),
		c.StartDate.String(),
		strings.Join(scheduled, ";"),
		formatBool(c.NotificationSent),
		paid,
		notified,
		values,
	}, nil
}

// DecodeRow parses one stored row. Any unparsable cell yields an error
// wrapping interfaces.ErrCorruptRecord; nothing is silently defaulted.
// index is the zero-based data row number, used for error messages and for
// deriving an id when the row has none.
func DecodeRow(h Header, record []string, index int) (models.Customer, error) {
	corrupt := func(col string, err error) error {
		return fmt.Errorf("%w: row %d column %q: %v", interfaces.ErrCorruptRecord, index+1, col, err)
	}

	var c models.Customer
	c.Name, _ = h.cell(record, ColName)
	phone, _ := h.cell(record, ColPhone)
	c.Phone = models.NormalizePhone(phone)

	var err error
	raw, _ := h.cell(record, ColAmount)
	if c.Amount, err = decimal.NewFromString(raw); err != nil {
		return c, corrupt(ColAmount, err)
	}
	raw, _ = h.cell(record, ColInstallmentValue)
	if c.InstallmentValue, err = decimal.NewFromString(raw); err != nil {
		return c, corrupt(ColInstallmentValue, err)
	}
	raw, _ = h.cell(record, ColInstallments)
	if c.Installments, err = parseCount(raw); err != nil {
		return c, corrupt(ColInstallments, err)
	}
	raw, _ = h.cell(record, ColStartDate)
	if c.StartDate, err = models.ParseDate(raw); err != nil {
		return c, corrupt(ColStartDate, err)
	}
	raw, _ = h.cell(record, ColInstallmentDates)
	if c.InstallmentDates, err = splitDates(raw); err != nil {
		return c, corrupt(ColInstallmentDates, err)
	}

	if raw, ok := h.cell(record, ColNotificationSent); ok {
		if c.NotificationSent, err = parseBool(raw); err != nil {
			return c, corrupt(ColNotificationSent, err)
		}
	}

	c.PaidInstallments = []models.Date{}
	if raw, ok := h.cell(record, ColPaidInstallments); ok {
		if err := decodeLiteral(raw, &c.PaidInstallments); err != nil {
			return c, corrupt(ColPaidInstallments, err)
		}
	}
	c.NotifiedInstallments = []models.Date{}
	if raw, ok := h.cell(record, ColNotifiedInstallments); ok {
		if err := decodeLiteral(raw, &c.NotifiedInstallments); err != nil {
			return c, corrupt(ColNotifiedInstallments, err)
		}
	}
	c.InstallmentValues = map[models.Date]decimal.Decimal{}
	if raw, ok := h.cell(record, ColInstallmentValues); ok {
		if err := decodeLiteral(raw, &c.InstallmentValues); err != nil {
			return c, corrupt(ColInstallmentValues, err)
		}
	}

	c.ID, _ = h.cell(record, ColID)
	if c.ID == "" {
		seed := fmt.Sprintf("%d|%s|%s|%s", index, c.Name, c.Phone, c.StartDate)
		c.ID = uuid.NewSHA1(idNamespace, []byte(seed)).String()
	}
	return c, nil
}

// ReadTable decodes a whole CSV table. An empty input is an empty table.
func ReadTable(r io.Reader) ([]models.Customer, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	names, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.Customer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", interfaces.ErrCorruptRecord, err)
	}
	h, err := NewHeader(names)
	if err != nil {
		return nil, err
	}

	customers := []models.Customer{}
	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", interfaces.ErrCorruptRecord, i+1, err)
		}
		if len(record) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d cells, header has %d",
				interfaces.ErrCorruptRecord, i+1, len(record), len(names))
		}
		c, err := DecodeRow(h, record, i)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, nil
}

// WriteTable encodes customers as a CSV table with a header row.
func WriteTable(w io.Writer, customers []models.Customer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, c := range customers {
		row, err := EncodeRow(c)
		if err != nil {
			return fmt.Errorf("encode %q: %w", c.Name, err)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func encodeDates(ds []models.Date) (string, error) {
	if len(ds) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("encode dates: %w", err)
	}
	return string(raw), nil
}

func splitDates(raw string) ([]models.Date, error) {
	out := []models.Date{}
	for _, part := range strings.Split(raw, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := models.ParseDate(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// decodeLiteral reads a JSON cell. Older files hold single-quoted literals
// such as ['2024-01-31'] or {'2024-01-31': 120.0}; those are accepted too.
func decodeLiteral(raw string, v any) error {
	if raw == "" {
		return nil
	}
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if !strings.Contains(raw, "'") {
		return err
	}
	return json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), v)
}

func parseCount(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	// "3.0" is how some spreadsheet tools re-save integer columns.
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return int(d.IntPart()), nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteRows writes already encoded rows under the standard header. It is used
// to copy a table verbatim, without decoding it first.
func WriteRows(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}
