package memory

import (
	"context" // standard Go package for request-scoped context (timeouts, cancellation)
	"fmt"
	"sync" // standard Go package for concurrency primitives like Mutex
	"time"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces" // interface LedgerStore
	"github.com/HgH7/installment-tracker-2.0/internal/models"                // domain models: Customer
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It keeps the table and its snapshots in slices and is safe for concurrent use.
type MemoryLedgerStore struct {
	mu        sync.Mutex                   // mutex to protect the fields below from concurrent access
	customers []models.Customer            // the live table
	snapshots map[string][]models.Customer // snapshot id -> frozen copy of the table
	order     []string                     // snapshot ids in creation order

	// FailWrites makes Replace and Append fail, for exercising error paths.
	FailWrites error
	// FailSnapshots makes Snapshot fail.
	FailSnapshots error
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		customers: make([]models.Customer, 0),
		snapshots: make(map[string][]models.Customer),
	}
}

// Load returns a copy of all customers so callers can't modify internal state.
func (m *MemoryLedgerStore) Load(ctx context.Context) ([]models.Customer, error) {
	m.mu.Lock()         // lock to prevent concurrent modification while reading
	defer m.mu.Unlock() // unlock automatically at the end

	return models.CloneAll(m.customers), nil
}

func (m *MemoryLedgerStore) Replace(ctx context.Context, customers []models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.customers = models.CloneAll(customers)
	return nil
}

func (m *MemoryLedgerStore) Append(ctx context.Context, customer models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.customers = append(m.customers, customer.Clone())
	return nil
}

func (m *MemoryLedgerStore) Snapshot(ctx context.Context, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSnapshots != nil {
		return "", m.FailSnapshots
	}
	id := "backup_" + at.Format("20060102_150405")
	for n := 1; ; n++ {
		if _, taken := m.snapshots[id]; !taken {
			break
		}
		id = fmt.Sprintf("backup_%s_%02d", at.Format("20060102_150405"), n)
	}
	m.snapshots[id] = models.CloneAll(m.customers)
	m.order = append(m.order, id)
	return id, nil
}

func (m *MemoryLedgerStore) Restore(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[id]
	if !ok {
		return interfaces.ErrSnapshotNotFound
	}
	m.customers = models.CloneAll(snap)
	return nil
}

// Snapshots lists ids most recent first.
func (m *MemoryLedgerStore) Snapshots(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		ids = append(ids, m.order[i])
	}
	return ids, nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
