package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "data", "customers.csv"), filepath.Join(dir, "data", "backups"), nil)
	require.NoError(t, err)
	return s, dir
}

func customer(name string) models.Customer {
	d := models.MustParseDate("2024-01-31")
	return models.Customer{
		ID:                   name + "-id",
		Name:                 name,
		Phone:                "+966500000001",
		Amount:               decimal.NewFromInt(100),
		Installments:         1,
		InstallmentValue:     decimal.NewFromInt(100),
		StartDate:            d,
		InstallmentDates:     []models.Date{d},
		PaidInstallments:     []models.Date{},
		NotifiedInstallments: []models.Date{},
		InstallmentValues:    map[models.Date]decimal.Decimal{},
	}
}

func TestNew_CreatesEmptyLedger(t *testing.T) {
	s, _ := newStore(t)

	_, err := os.Stat(s.Path())
	require.NoError(t, err)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_AppendReplaceLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.Append(ctx, customer("a")))
	require.NoError(t, s.Append(ctx, customer("b")))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)

	require.NoError(t, s.Replace(ctx, []models.Customer{customer("c")}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Name)
}

func TestStore_LoadRecreatesMissingFile(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, os.Remove(s.Path()))

	got, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("same second does not overwrite", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Append(ctx, customer("a")))

		first, err := s.Snapshot(ctx, at)
		require.NoError(t, err)
		second, err := s.Snapshot(ctx, at)
		require.NoError(t, err)
		third, err := s.Snapshot(ctx, at.Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, "backup_20240601_120000.csv", first)
		assert.Equal(t, "backup_20240601_120000_01.csv", second)

		ids, err := s.Snapshots(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{third, second, first}, ids)
	})

	t.Run("restore", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Append(ctx, customer("a")))
		id, err := s.Snapshot(ctx, at)
		require.NoError(t, err)
		require.NoError(t, s.Replace(ctx, []models.Customer{customer("b"), customer("c")}))

		require.NoError(t, s.Restore(ctx, id))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].Name)
	})

	t.Run("restore unknown", func(t *testing.T) {
		s, _ := newStore(t)
		assert.ErrorIs(t, s.Restore(ctx, "backup_19990101_000000.csv"), interfaces.ErrSnapshotNotFound)
		assert.ErrorIs(t, s.Restore(ctx, "../customers.csv"), interfaces.ErrSnapshotNotFound)
	})

	t.Run("no live file", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, os.Remove(s.Path()))

		_, err := s.Snapshot(ctx, at)
		assert.ErrorIs(t, err, interfaces.ErrNoLedger)
	})
}

func TestStore_LoadCorruptFile(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("Name,Phone\nx,y\n"), 0o644))

	_, err := s.Load(context.Background())

	assert.ErrorIs(t, err, interfaces.ErrCorruptRecord)
}
