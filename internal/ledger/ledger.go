package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/models/events"
	"github.com/HgH7/installment-tracker-2.0/internal/schedule"
	"github.com/HgH7/installment-tracker-2.0/internal/storage/tabular"
)

// DefaultCacheTTL is how long ReadAll may answer from memory.
const DefaultCacheTTL = 60 * time.Second

type Config struct {
	Store interfaces.LedgerStore `validate:"required"` // any storage implementation: csv file, memory, SQL

	Now       func() time.Time // clock, time.Now when nil
	CacheTTL  time.Duration    // DefaultCacheTTL when zero
	Policy    schedule.Policy  // schedule.CalendarMonth when nil
	Publisher interfaces.EventPublisher
	Logger    *log.Logger
}

// Ledger is the only owner of the customer table. Every read and write of the
// backend goes through it.
type Ledger struct {
	store     interfaces.LedgerStore
	now       func() time.Time
	ttl       time.Duration
	policy    schedule.Policy
	publisher interfaces.EventPublisher
	logger    *log.Logger

	// mu is the single writer lock. Every mutation holds it across its
	// read-modify-write, and it also guards the cache fields.
	mu       sync.Mutex
	cache    []models.Customer
	cachedAt time.Time
}

var validate = validator.New()

// New builds a Ledger over the given storage backend.
func New(conf Config) (*Ledger, error) {
	if err := validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("bad config: %w", err)
	}
	l := &Ledger{
		store:     conf.Store,
		now:       conf.Now,
		ttl:       conf.CacheTTL,
		policy:    conf.Policy,
		publisher: conf.Publisher,
		logger:    conf.Logger,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.ttl == 0 {
		l.ttl = DefaultCacheTTL
	}
	if l.policy == nil {
		l.policy = schedule.CalendarMonth
	}
	if l.publisher == nil {
		l.publisher = interfaces.NopPublisher{}
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	return l, nil
}

// Policy is the schedule policy every schedule of this ledger is built with.
func (l *Ledger) Policy() schedule.Policy { return l.policy }

// Today is the current calendar day by the ledger's clock.
func (l *Ledger) Today() models.Date { return models.DateOf(l.now()) }

// SaveResult reports what SaveAll actually wrote.
type SaveResult struct {
	Written  int
	Dropped  int
	Snapshot string // backup taken before the write
}

// ReadAll returns every customer. Within the cache TTL it answers from
// memory; the result is always a copy the caller may modify.
func (l *Ledger) ReadAll(ctx context.Context) ([]models.Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cache != nil && l.now().Sub(l.cachedAt) < l.ttl {
		return models.CloneAll(l.cache), nil
	}
	customers, err := l.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return models.CloneAll(customers), nil
}

// loadLocked reads the backend, bypassing the cache, and refreshes the cache.
func (l *Ledger) loadLocked(ctx context.Context) ([]models.Customer, error) {
	customers, err := l.store.Load(ctx)
	if err != nil {
		l.invalidateLocked()
		l.logger.Error("failed to read ledger", "err", err)
		return nil, storageError("read ledger", err)
	}
	l.setCacheLocked(customers)
	return customers, nil
}

func (l *Ledger) setCacheLocked(customers []models.Customer) {
	l.cache = models.CloneAll(customers)
	l.cachedAt = l.now()
}

func (l *Ledger) invalidateLocked() {
	l.cache = nil
	l.cachedAt = time.Time{}
}

// SaveAll overwrites the table with records. Invalid records are dropped
// with a warning and counted in the result; the valid remainder is written
// after a backup of the current table.
func (l *Ledger) SaveAll(ctx context.Context, records []models.Customer) (SaveResult, error) {
	valid := make([]models.Customer, 0, len(records))
	ids := make(map[string]bool, len(records))
	var res SaveResult

	for i, rec := range records {
		c := rec.Clone()
		c.Phone = models.NormalizePhone(c.Phone)
		if err := Validate(c); err != nil {
			res.Dropped++
			l.logger.Warn("dropping invalid row", "row", i, "name", c.Name, "err", err)
			continue
		}
		if c.ID == "" || ids[c.ID] {
			c.ID = uuid.NewString()
		}
		ids[c.ID] = true
		valid = append(valid, c)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot, err := l.writeLocked(ctx, "save_all", "", valid)
	if err != nil {
		return SaveResult{}, err
	}
	res.Written = len(valid)
	res.Snapshot = snapshot
	if res.Dropped > 0 {
		l.logger.Warn("saved ledger with dropped rows", "written", res.Written, "dropped", res.Dropped)
	}
	return res, nil
}

// backupLocked snapshots the live table ahead of a write. A ledger with no
// live table yet has nothing to back up.
func (l *Ledger) backupLocked(ctx context.Context, op string) (string, error) {
	snapshot, err := l.store.Snapshot(ctx, l.now())
	switch {
	case errors.Is(err, ErrNoLedger):
		l.logger.Warn("no live ledger to back up", "op", op)
		return "", nil
	case err != nil:
		l.logger.Error("backup before write failed, nothing written", "op", op, "err", err)
		return "", storageError("backup before "+op, err)
	}
	return snapshot, nil
}

// writeLocked backs up the live table and replaces it with customers.
func (l *Ledger) writeLocked(ctx context.Context, op, customerID string, customers []models.Customer) (string, error) {
	snapshot, err := l.backupLocked(ctx, op)
	if err != nil {
		return "", err
	}
	if err := l.store.Replace(ctx, customers); err != nil {
		l.invalidateLocked()
		l.logger.Error("failed to write ledger", "op", op, "snapshot", snapshot, "err", err)
		return "", storageError("write ledger", err)
	}
	l.setCacheLocked(customers)
	l.publish(ctx, events.LedgerChanged{Operation: op, CustomerID: customerID, Rows: len(customers), Snapshot: snapshot})
	return snapshot, nil
}

// AppendCustomer adds one customer after taking a backup. The record must be
// complete and valid and its ID, when given, unused; if the backup fails
// nothing is written.
func (l *Ledger) AppendCustomer(ctx context.Context, c models.Customer) (models.Customer, error) {
	c = c.Clone()
	c.Phone = models.NormalizePhone(c.Phone)
	if err := Validate(c); err != nil {
		l.logger.Error("rejected new customer", "name", c.Name, "err", err)
		return models.Customer{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	customers, err := l.loadLocked(ctx)
	if err != nil {
		return models.Customer{}, err
	}
	if slices.ContainsFunc(customers, func(other models.Customer) bool { return other.ID == c.ID }) {
		l.logger.Error("rejected new customer", "name", c.Name, "id", c.ID, "err", "duplicate id")
		return models.Customer{}, &ValidationError{Customer: c.Name, Fields: []string{"id"},
			Reasons: []string{"id " + c.ID + " is already in use"}}
	}

	snapshot, err := l.backupLocked(ctx, "append_customer")
	if err != nil {
		return models.Customer{}, err
	}
	if err := l.store.Append(ctx, c); err != nil {
		l.logger.Error("failed to append customer", "name", c.Name, "err", err)
		return models.Customer{}, storageError("append customer", err)
	}
	l.invalidateLocked()

	l.logger.Info("customer added", "id", c.ID, "name", c.Name)
	l.publish(ctx, events.LedgerChanged{Operation: "append_customer", CustomerID: c.ID, Rows: 1, Snapshot: snapshot})
	return c.Clone(), nil
}

// Patch holds the fields an outside caller may change on a customer. Nil
// fields are left alone. Payment history (paid, notified and override dates)
// and the legacy notification flag are not patchable.
type Patch struct {
	Name             *string
	Phone            *string
	Amount           *decimal.Decimal
	Installments     *int
	InstallmentValue *decimal.Decimal
	StartDate        *models.Date
	InstallmentDates []models.Date
}

// UpdateCustomer merges patch into the customer identified by key. The merged
// record is validated before anything is written.
func (l *Ledger) UpdateCustomer(ctx context.Context, key string, patch Patch) (models.Customer, error) {
	return l.mutate(ctx, "update_customer", key, func(c *models.Customer) (bool, error) {
		preserved := struct {
			sent           bool
			paid, notified []models.Date
			values         map[models.Date]decimal.Decimal
		}{c.NotificationSent, c.PaidInstallments, c.NotifiedInstallments, c.InstallmentValues}

		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Phone != nil {
			c.Phone = *patch.Phone
		}
		if patch.Amount != nil {
			c.Amount = *patch.Amount
		}
		if patch.Installments != nil {
			c.Installments = *patch.Installments
		}
		if patch.InstallmentValue != nil {
			c.InstallmentValue = *patch.InstallmentValue
		}
		if patch.StartDate != nil {
			c.StartDate = *patch.StartDate
		}
		if patch.InstallmentDates != nil {
			c.InstallmentDates = slices.Clone(patch.InstallmentDates)
		}

		c.NotificationSent = preserved.sent
		c.PaidInstallments = preserved.paid
		c.NotifiedInstallments = preserved.notified
		c.InstallmentValues = preserved.values
		return true, nil
	})
}

// Edit is a whole-record edit as made on the customer form.
type Edit struct {
	Name         string
	Phone        string
	Amount       decimal.Decimal
	Installments int
	StartDate    models.Date
}

// EditCustomer replaces a customer's details and rebuilds the installment
// value and schedule with the ledger's policy. Paid, notified and override
// markers are kept for dates that are still scheduled and dropped otherwise.
func (l *Ledger) EditCustomer(ctx context.Context, key string, e Edit) (models.Customer, error) {
	if e.Installments <= 0 {
		return models.Customer{}, &ValidationError{Customer: e.Name, Fields: []string{"installments"},
			Reasons: []string{"installments must be greater than zero"}}
	}
	return l.mutate(ctx, "edit_customer", key, func(c *models.Customer) (bool, error) {
		c.Name = strings.TrimSpace(e.Name)
		c.Phone = e.Phone
		c.Amount = e.Amount
		c.Installments = e.Installments
		c.InstallmentValue = schedule.InstallmentValue(e.Amount, e.Installments)
		c.StartDate = e.StartDate
		c.InstallmentDates = l.policy(e.StartDate, e.Installments)

		keep := func(ds []models.Date, what string) []models.Date {
			out := make([]models.Date, 0, len(ds))
			for _, d := range ds {
				if c.HasInstallment(d) {
					out = append(out, d)
				} else {
					l.logger.Warn("schedule edit dropped marker", "customer", c.ID, "kind", what, "date", d)
				}
			}
			return out
		}
		c.PaidInstallments = keep(c.PaidInstallments, "paid")
		c.NotifiedInstallments = keep(c.NotifiedInstallments, "notified")
		for d := range c.InstallmentValues {
			if !c.HasInstallment(d) {
				l.logger.Warn("schedule edit dropped override", "customer", c.ID, "date", d)
				delete(c.InstallmentValues, d)
			}
		}
		return true, nil
	})
}

// DeleteCustomer removes the customer with id key, or every customer named
// key, and returns what was removed.
func (l *Ledger) DeleteCustomer(ctx context.Context, key string) ([]models.Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	customers, err := l.loadLocked(ctx)
	if err != nil {
		return nil, err
	}

	match := func(c models.Customer) bool { return c.Name == key }
	if slices.ContainsFunc(customers, func(c models.Customer) bool { return c.ID == key }) {
		match = func(c models.Customer) bool { return c.ID == key }
	}

	var removed []models.Customer
	kept := make([]models.Customer, 0, len(customers))
	for _, c := range customers {
		if match(c) {
			removed = append(removed, c)
		} else {
			kept = append(kept, c)
		}
	}
	if len(removed) == 0 {
		l.logger.Error("customer not found", "key", key)
		return nil, fmt.Errorf("delete %q: %w", key, ErrNotFound)
	}

	customerID := ""
	if len(removed) == 1 {
		customerID = removed[0].ID
	}
	if _, err := l.writeLocked(ctx, "delete_customer", customerID, kept); err != nil {
		return nil, err
	}
	l.logger.Info("customer deleted", "key", key, "removed", len(removed))
	return removed, nil
}

// Search returns every customer with a field containing query, ignoring case.
func (l *Ledger) Search(ctx context.Context, query string) ([]models.Customer, error) {
	customers, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return customers, nil
	}

	matches := []models.Customer{}
	for _, c := range customers {
		cells, err := tabular.EncodeRow(c)
		if err != nil {
			continue
		}
		if slices.ContainsFunc(cells, func(cell string) bool {
			return strings.Contains(strings.ToLower(cell), q)
		}) {
			matches = append(matches, c)
		}
	}
	return matches, nil
}

// Get returns the customer identified by key.
func (l *Ledger) Get(ctx context.Context, key string) (models.Customer, error) {
	customers, err := l.ReadAll(ctx)
	if err != nil {
		return models.Customer{}, err
	}
	i := find(customers, key)
	if i < 0 {
		return models.Customer{}, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return customers[i], nil
}

// IsPaid reports whether the installment on date is recorded as paid.
func (l *Ledger) IsPaid(ctx context.Context, key string, date models.Date) (bool, error) {
	c, err := l.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return c.IsPaid(date), nil
}

func (l *Ledger) Summary(ctx context.Context, key string) (models.Summary, error) {
	c, err := l.Get(ctx, key)
	if err != nil {
		return models.Summary{}, err
	}
	return schedule.Summarize(c), nil
}

// Statement lists the customer's installments with their status as of today.
func (l *Ledger) Statement(ctx context.Context, key string) ([]models.Installment, error) {
	c, err := l.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return schedule.Statement(c, l.Today()), nil
}

// MarkPaid records the installment on date as paid. Marking an already paid
// installment succeeds without writing.
func (l *Ledger) MarkPaid(ctx context.Context, key string, date models.Date) error {
	_, err := l.mutate(ctx, "mark_paid", key, func(c *models.Customer) (bool, error) {
		if !c.HasInstallment(date) {
			return false, fmt.Errorf("%s on %s: %w", c.Name, date, ErrInstallmentNotFound)
		}
		if c.IsPaid(date) {
			l.logger.Info("installment already paid", "customer", c.ID, "date", date)
			return false, nil
		}
		c.PaidInstallments = append(c.PaidInstallments, date)
		return true, nil
	})
	return err
}

// UnmarkPaid removes the paid marker for date. Unmarking an unpaid
// installment succeeds without writing.
func (l *Ledger) UnmarkPaid(ctx context.Context, key string, date models.Date) error {
	_, err := l.mutate(ctx, "unmark_paid", key, func(c *models.Customer) (bool, error) {
		if !c.HasInstallment(date) {
			return false, fmt.Errorf("%s on %s: %w", c.Name, date, ErrInstallmentNotFound)
		}
		if !c.IsPaid(date) {
			return false, nil
		}
		c.PaidInstallments = slices.DeleteFunc(c.PaidInstallments, func(d models.Date) bool { return d == date })
		return true, nil
	})
	return err
}

// MarkNotified records that a reminder for date went out, and sets the
// customer's legacy notification flag.
func (l *Ledger) MarkNotified(ctx context.Context, key string, date models.Date) error {
	_, err := l.mutate(ctx, "mark_notified", key, func(c *models.Customer) (bool, error) {
		if !c.HasInstallment(date) {
			return false, fmt.Errorf("%s on %s: %w", c.Name, date, ErrInstallmentNotFound)
		}
		if c.IsNotified(date) && c.NotificationSent {
			return false, nil
		}
		if !c.IsNotified(date) {
			c.NotifiedInstallments = append(c.NotifiedInstallments, date)
		}
		c.NotificationSent = true
		return true, nil
	})
	return err
}

// UpdateInstallment moves the installment on oldDate to newDate, keeping its
// position in the schedule, and sets its value. A paid marker follows the
// installment to its new date; a reminder already sent for oldDate does not.
// A value equal to the customer's default value clears the override; a nil
// value keeps the installment's current value.
func (l *Ledger) UpdateInstallment(ctx context.Context, key string, oldDate, newDate models.Date, value *decimal.Decimal) error {
	if value != nil && value.IsNegative() {
		return &ValidationError{Fields: []string{"value"}, Reasons: []string{"installment value must not be negative"}}
	}
	_, err := l.mutate(ctx, "update_installment", key, func(c *models.Customer) (bool, error) {
		pos := slices.Index(c.InstallmentDates, oldDate)
		if pos < 0 {
			return false, fmt.Errorf("%s on %s: %w", c.Name, oldDate, ErrInstallmentNotFound)
		}
		if newDate != oldDate && c.HasInstallment(newDate) {
			return false, &ValidationError{Customer: c.Name, Fields: []string{"new_date"},
				Reasons: []string{"an installment is already scheduled on " + newDate.String()}}
		}

		v := schedule.EffectiveValue(*c, oldDate)
		if value != nil {
			v = *value
		}

		c.InstallmentDates[pos] = newDate
		if c.InstallmentValues == nil {
			c.InstallmentValues = map[models.Date]decimal.Decimal{}
		}
		delete(c.InstallmentValues, oldDate)
		if !v.Equal(c.InstallmentValue) {
			c.InstallmentValues[newDate] = v
		}
		if i := slices.Index(c.PaidInstallments, oldDate); i >= 0 {
			c.PaidInstallments[i] = newDate
		}
		if newDate != oldDate {
			c.NotifiedInstallments = slices.DeleteFunc(c.NotifiedInstallments, func(d models.Date) bool { return d == oldDate })
		}
		return true, nil
	})
	return err
}

// mutate runs fn on a fresh copy of the customer identified by key while
// holding the writer lock, validates the result and saves the table. fn
// returns false to report that nothing changed, in which case nothing is
// written.
func (l *Ledger) mutate(ctx context.Context, op, key string, fn func(c *models.Customer) (bool, error)) (models.Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	customers, err := l.loadLocked(ctx)
	if err != nil {
		return models.Customer{}, err
	}
	i := find(customers, key)
	if i < 0 {
		l.logger.Warn("customer not found", "op", op, "key", key)
		return models.Customer{}, fmt.Errorf("%s %q: %w", op, key, ErrNotFound)
	}

	c := customers[i].Clone()
	changed, err := fn(&c)
	if err != nil {
		l.logger.Warn("operation rejected", "op", op, "key", key, "err", err)
		return models.Customer{}, err
	}
	if !changed {
		return customers[i].Clone(), nil
	}
	c.Phone = models.NormalizePhone(c.Phone)
	if err := Validate(c); err != nil {
		l.logger.Warn("operation rejected", "op", op, "key", key, "err", err)
		return models.Customer{}, err
	}

	customers[i] = c
	if _, err := l.writeLocked(ctx, op, c.ID, customers); err != nil {
		return models.Customer{}, err
	}
	return c.Clone(), nil
}

// find resolves a customer key: a surrogate id first, otherwise the first
// customer with that display name.
func find(customers []models.Customer, key string) int {
	if i := slices.IndexFunc(customers, func(c models.Customer) bool { return c.ID == key }); i >= 0 {
		return i
	}
	return slices.IndexFunc(customers, func(c models.Customer) bool { return c.Name == key })
}

// CreateBackup snapshots the live table and returns the snapshot id.
func (l *Ledger) CreateBackup(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.store.Snapshot(ctx, l.now())
	if err != nil {
		l.logger.Error("backup failed", "err", err)
		return "", storageError("create backup", err)
	}
	return id, nil
}

// RestoreBackup replaces the live table with a snapshot. The current table is
// backed up first so the restore itself can be undone.
func (l *Ledger) RestoreBackup(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.store.Snapshots(ctx)
	if err != nil {
		return storageError("list backups", err)
	}
	if !slices.Contains(ids, id) {
		return fmt.Errorf("restore %q: %w", id, ErrSnapshotNotFound)
	}

	safety, err := l.backupLocked(ctx, "restore_backup")
	if err != nil {
		return err
	}

	if err := l.store.Restore(ctx, id); err != nil {
		l.invalidateLocked()
		l.logger.Error("restore failed", "snapshot", id, "err", err)
		return storageError("restore backup", err)
	}
	l.invalidateLocked()

	l.logger.Info("backup restored", "snapshot", id, "safety_snapshot", safety)
	l.publish(ctx, events.LedgerChanged{Operation: "restore_backup", Snapshot: id})
	return nil
}

// ListBackups returns snapshot ids, most recent first.
func (l *Ledger) ListBackups(ctx context.Context) ([]string, error) {
	ids, err := l.store.Snapshots(ctx)
	if err != nil {
		return nil, storageError("list backups", err)
	}
	return ids, nil
}

func (l *Ledger) publish(ctx context.Context, e events.LedgerChanged) {
	e.EventID = xid.New().String()
	e.OccurredAt = l.now()
	if err := l.publisher.Publish(ctx, events.TopicLedgerChanged, e); err != nil {
		l.logger.Warn("failed to publish ledger event", "op", e.Operation, "err", err)
	}
}
