// Package export renders the ledger as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/schedule"
)

const SheetName = "بيانات العملاء"

// Headers are the column titles of the exported sheet, in order.
var Headers = []string{
	"اسم العميل",
	"رقم الهاتف",
	"المبلغ الإجمالي",
	"عدد الأقساط",
	"قيمة القسط",
	"تاريخ البدء",
	"تواريخ الأقساط",
	"تم الإرسال",
	"الأقساط المدفوعة",
	"المبلغ المدفوع",
	"المبلغ المتبقي",
	"القسط القادم",
}

// FileName is the download name for an export taken at today.
func FileName(today models.Date) string {
	return fmt.Sprintf("customers_export_%s.xlsx", strings.ReplaceAll(today.String(), "-", ""))
}

// WriteWorkbook writes one row per customer, with payment totals, to w.
func WriteWorkbook(w io.Writer, customers []models.Customer, today models.Date) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	rtl := true
	if err := f.SetSheetView(SheetName, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return err
	}

	for i, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, header)
	}

	for i, c := range customers {
		s := schedule.Summarize(c)
		dates := make([]string, len(c.InstallmentDates))
		for j, d := range c.InstallmentDates {
			dates[j] = d.String()
		}
		sent := "لا"
		if c.NotificationSent {
			sent = "نعم"
		}

		values := []any{
			c.Name,
			c.Phone,
			c.Amount.InexactFloat64(),
			c.Installments,
			c.InstallmentValue.InexactFloat64(),
			c.StartDate.String(),
			strings.Join(dates, "; "),
			sent,
			fmt.Sprintf("%d/%d", s.PaidCount, s.Total),
			s.PaidAmount.InexactFloat64(),
			s.RemainingAmount.InexactFloat64(),
			nextDue(c, today),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := styleSheet(f, len(customers)); err != nil {
		return err
	}
	return f.Write(w)
}

// nextDue is the earliest unpaid installment on or after today, or the
// earliest overdue one when nothing is left in the future.
func nextDue(c models.Customer, today models.Date) string {
	var overdue models.Date
	for _, d := range c.InstallmentDates {
		if c.IsPaid(d) {
			continue
		}
		if !d.Before(today) {
			return d.String()
		}
		if overdue.IsZero() {
			overdue = d
		}
	}
	return overdue.String()
}

func styleSheet(f *excelize.File, rows int) error {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Family: "Arial", Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2B7DE9"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "1A5FB4", Style: 2},
			{Type: "right", Color: "1A5FB4", Style: 2},
			{Type: "top", Color: "1A5FB4", Style: 2},
			{Type: "bottom", Color: "1A5FB4", Style: 2},
		},
	})
	if err != nil {
		return err
	}
	body, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 12, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return err
	}

	last, _ := excelize.ColumnNumberToName(len(Headers))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", header); err != nil {
		return err
	}
	if rows > 0 {
		if err := f.SetCellStyle(SheetName, "A2", fmt.Sprintf("%s%d", last, rows+1), body); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetName, "A", last, 20); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "G", "G", 40); err != nil {
		return err
	}
	return f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}
