package models

import "github.com/shopspring/decimal"

// InstallmentStatus classifies one scheduled installment relative to today.
type InstallmentStatus string

const (
	StatusPaid    InstallmentStatus = "paid"    // recorded as paid
	StatusPayable InstallmentStatus = "payable" // unpaid and due on or before today
	StatusFuture  InstallmentStatus = "future"  // unpaid and not yet due
)

// CanMarkPaid reports whether a "mark as paid" action applies.
func (s InstallmentStatus) CanMarkPaid() bool {
	return s == StatusPayable
}

// Installment is one line of a customer's statement.
type Installment struct {
	Date     Date              `json:"date"`
	Value    decimal.Decimal   `json:"value"`
	Status   InstallmentStatus `json:"status"`
	Notified bool              `json:"notified"`
}

// Summary aggregates a customer's payment progress. Amounts are sums of
// effective per-date values, so overrides are honoured.
type Summary struct {
	Total           int             `json:"total"`
	PaidCount       int             `json:"paid_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}
