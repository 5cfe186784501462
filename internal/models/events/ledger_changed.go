package events

import "time"

const TopicLedgerChanged = "ledger_changed"

// LedgerChanged describes a committed mutation of the ledger table.
type LedgerChanged struct {
	EventID    string    `json:"event_id"`
	Operation  string    `json:"operation"`
	CustomerID string    `json:"customer_id,omitempty"`
	Rows       int       `json:"rows"`
	Snapshot   string    `json:"snapshot,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
