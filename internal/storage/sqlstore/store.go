// Package sqlstore keeps the ledger table and its snapshots in a SQL database.
// Postgres is the production target (lib/pq); SQLite (go-sqlite3) serves
// single-machine installs and tests.
package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces" // interface LedgerStore
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/storage/tabular"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// cellColumns are stored in tabular.Columns order.
var cellColumns = []string{
	"id", "name", "phone", "amount", "installments", "installment_value", "start_date",
	"installment_dates", "notification_sent", "paid_installments", "notified_installments",
	"installment_values",
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	header  tabular.Header
	logger  *log.Logger
}

// OpenPostgres connects to dsn and prepares the schema.
func OpenPostgres(dsn string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db, Postgres, logger)
}

// OpenSQLite opens the database file at path; ":memory:" gives a private
// in-memory database.
func OpenSQLite(path string, logger *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection, so ":memory:" is one database and writers queue up
	db.SetMaxOpenConns(1)
	return New(db, SQLite, logger)
}

func New(db *sql.DB, dialect Dialect, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	header, err := tabular.NewHeader(tabular.Columns)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: dialect, header: header, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ledger_customers (
			position INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			amount TEXT NOT NULL,
			installments TEXT NOT NULL,
			installment_value TEXT NOT NULL,
			start_date TEXT NOT NULL,
			installment_dates TEXT NOT NULL,
			notification_sent TEXT NOT NULL,
			paid_installments TEXT NOT NULL,
			notified_installments TEXT NOT NULL,
			installment_values TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_snapshots (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// placeholders returns "$1, $2, ..." or "?, ?, ..." for n parameters starting at from.
func (s *Store) placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if s.dialect == Postgres {
			parts[i] = fmt.Sprintf("$%d", from+i)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (s *Store) Load(ctx context.Context) ([]models.Customer, error) {
	rows, err := s.rawRows(ctx)
	if err != nil {
		return nil, err
	}
	customers := make([]models.Customer, 0, len(rows))
	for i, row := range rows {
		c, err := tabular.DecodeRow(s.header, row, i)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, nil
}

func (s *Store) rawRows(ctx context.Context) ([][]string, error) {
	query := `SELECT ` + strings.Join(cellColumns, ", ") + ` FROM ledger_customers ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		cells := make([]string, len(cellColumns))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Replace(ctx context.Context, customers []models.Customer) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if _, err = dbTx.ExecContext(ctx, `DELETE FROM ledger_customers`); err != nil {
		return err
	}
	for i, c := range customers {
		if err = s.insert(ctx, dbTx, i, c); err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *Store) Append(ctx context.Context, customer models.Customer) (err error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	var next int
	err = dbTx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM ledger_customers`).Scan(&next)
	if err != nil {
		return err
	}
	if err = s.insert(ctx, dbTx, next, customer); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (s *Store) insert(ctx context.Context, dbTx *sql.Tx, position int, c models.Customer) error {
	cells, err := tabular.EncodeRow(c)
	if err != nil {
		return err
	}
	query := `INSERT INTO ledger_customers (position, ` + strings.Join(cellColumns, ", ") + `)
	VALUES (` + s.placeholders(1, len(cellColumns)+1) + `)`

	args := make([]any, 0, len(cells)+1)
	args = append(args, position)
	for _, cell := range cells {
		args = append(args, cell)
	}
	_, err = dbTx.ExecContext(ctx, query, args...)
	return err
}

// Snapshot stores the live table, encoded as CSV, in ledger_snapshots.
func (s *Store) Snapshot(ctx context.Context, at time.Time) (string, error) {
	rows, err := s.rawRows(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tabular.WriteRows(&buf, rows); err != nil {
		return "", err
	}

	base := "backup_" + at.Format("20060102_150405")
	id := base
	for n := 1; ; n++ {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ledger_snapshots WHERE id = `+s.placeholders(1, 1), id).Scan(&exists)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return "", err
		}
		id = fmt.Sprintf("%s_%02d", base, n)
	}

	query := `INSERT INTO ledger_snapshots (id, created_at, payload) VALUES (` + s.placeholders(1, 3) + `)`
	if _, err := s.db.ExecContext(ctx, query, id, at.UTC().Format(time.RFC3339), buf.String()); err != nil {
		return "", err
	}
	s.logger.Info("snapshot created", "snapshot", id)
	return id, nil
}

func (s *Store) Restore(ctx context.Context, id string) error {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM ledger_snapshots WHERE id = `+s.placeholders(1, 1), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return interfaces.ErrSnapshotNotFound
	}
	if err != nil {
		return err
	}
	customers, err := tabular.ReadTable(strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", id, err)
	}
	return s.Replace(ctx, customers)
}

func (s *Store) Snapshots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM ledger_snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ interfaces.LedgerStore = (*Store)(nil)
