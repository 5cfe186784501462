package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicInstallmentReminded = "installment_reminded"

// InstallmentReminded is published once a reminder for an installment has
// been handed to the messaging transport.
type InstallmentReminded struct {
	EventID      string          `json:"event_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	DueDate      string          `json:"due_date"`
	Amount       decimal.Decimal `json:"amount"`
	Manual       bool            `json:"manual"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
