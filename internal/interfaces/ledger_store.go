package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

var (
	// ErrNoLedger is returned by Snapshot when there is no live table to copy.
	ErrNoLedger = errors.New("no live ledger table")
	// ErrSnapshotNotFound is returned by Restore for an unknown snapshot id.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrCorruptRecord is returned by Load when a stored row cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
)

// LedgerStore is the persistence backend behind the ledger: one flat table of
// customers plus an append-only set of full-table snapshots.
type LedgerStore interface {
	// Load returns every stored customer in table order, creating an empty
	// table when none exists yet.
	Load(ctx context.Context) ([]models.Customer, error)
	// Replace overwrites the whole table.
	Replace(ctx context.Context, customers []models.Customer) error
	// Append adds one row at the end of the table.
	Append(ctx context.Context, customer models.Customer) error

	// Snapshot copies the live table under a name derived from at and
	// returns the snapshot id.
	Snapshot(ctx context.Context, at time.Time) (string, error)
	// Restore overwrites the live table with the snapshot's contents.
	Restore(ctx context.Context, id string) error
	// Snapshots lists snapshot ids, most recent first.
	Snapshots(ctx context.Context) ([]string, error)
}
