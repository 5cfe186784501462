// Package csvfile keeps the ledger in one CSV file and its snapshots as
// sibling CSV files in a backup directory.
package csvfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/storage/tabular"
)

const (
	snapshotPrefix = "backup_"
	snapshotExt    = ".csv"
	snapshotLayout = "20060102_150405"
)

// Store is a LedgerStore over a CSV file. It does no locking of its own; the
// ledger serializes writers.
type Store struct {
	path      string
	backupDir string
	logger    *log.Logger
}

// New returns a Store for the ledger file at path, creating the backup
// directory and an empty ledger file when they do not exist yet.
func New(path, backupDir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{path: path, backupDir: backupDir, logger: logger}

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.writeFile(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) ([]models.Customer, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("ledger file missing, creating an empty one", "path", s.path)
		if err := s.writeFile(nil); err != nil {
			return nil, err
		}
		return []models.Customer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	return tabular.ReadTable(f)
}

func (s *Store) Replace(ctx context.Context, customers []models.Customer) error {
	return s.writeFile(customers)
}

// Append rewrites the file with the new row at the end. Rewriting through a
// temp file keeps the old file intact if anything fails half way.
func (s *Store) Append(ctx context.Context, customer models.Customer) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return s.writeFile(append(current, customer))
}

func (s *Store) Snapshot(ctx context.Context, at time.Time) (string, error) {
	src, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", interfaces.ErrNoLedger
	}
	if err != nil {
		return "", fmt.Errorf("read ledger: %w", err)
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base := snapshotPrefix + at.Format(snapshotLayout)
	name := base + snapshotExt
	for n := 1; ; n++ {
		// O_EXCL: an existing snapshot is never overwritten.
		f, err := os.OpenFile(filepath.Join(s.backupDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			if n > 99 {
				return "", fmt.Errorf("too many snapshots for %s", base)
			}
			name = fmt.Sprintf("%s_%02d%s", base, n, snapshotExt)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot: %w", err)
		}
		if _, err := f.Write(src); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close snapshot: %w", err)
		}
		s.logger.Info("snapshot created", "snapshot", name)
		return name, nil
	}
}

func (s *Store) Restore(ctx context.Context, id string) error {
	if !validSnapshotName(id) {
		return interfaces.ErrSnapshotNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.backupDir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return interfaces.ErrSnapshotNotFound
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	// refuse to restore something that would not load afterwards
	if _, err := tabular.ReadTable(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("snapshot %s: %w", id, err)
	}
	return s.replaceFile(raw)
}

func (s *Store) Snapshots(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	ids := []string{}
	for _, e := range entries {
		if !e.IsDir() && validSnapshotName(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	return ids, nil
}

func (s *Store) writeFile(customers []models.Customer) error {
	var buf bytes.Buffer
	if err := tabular.WriteTable(&buf, customers); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return s.replaceFile(buf.Bytes())
}

// replaceFile writes data next to the ledger and renames it into place.
func (s *Store) replaceFile(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func validSnapshotName(name string) bool {
	return strings.HasPrefix(name, snapshotPrefix) &&
		strings.HasSuffix(name, snapshotExt) &&
		filepath.Base(name) == name
}

// Compile-time check: ensure Store implements LedgerStore interface
var _ interfaces.LedgerStore = (*Store)(nil)
