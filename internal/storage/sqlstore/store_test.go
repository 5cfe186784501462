package sqlstore

import (
	"context"
	"testing"
	"time"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func customer(name string) models.Customer {
	d1, d2 := models.MustParseDate("2024-01-31"), models.MustParseDate("2024-02-29")
	return models.Customer{
		ID:                   name + "-id",
		Name:                 name,
		Phone:                "+966500000001",
		Amount:               decimal.NewFromInt(200),
		Installments:         2,
		InstallmentValue:     decimal.NewFromInt(100),
		StartDate:            d1,
		InstallmentDates:     []models.Date{d1, d2},
		PaidInstallments:     []models.Date{d1},
		NotifiedInstallments: []models.Date{},
		InstallmentValues:    map[models.Date]decimal.Decimal{d2: decimal.NewFromInt(120)},
	}
}

func TestStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	t.Run("empty", func(t *testing.T) {
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ok", func(t *testing.T) {
		// act
		require.NoError(t, s.Append(ctx, customer("a")))
		require.NoError(t, s.Append(ctx, customer("b")))
		got, err := s.Load(ctx)

		// assert
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].Name)
		assert.Equal(t, "b", got[1].Name)
		assert.Equal(t, []models.Date{models.MustParseDate("2024-01-31")}, got[0].PaidInstallments)
		assert.Equal(t, "120", got[0].InstallmentValues[models.MustParseDate("2024-02-29")].String())
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := s.Append(ctx, customer("a"))
		assert.Error(t, err)

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestStore_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, s.Replace(ctx, []models.Customer{customer("a")}))
	first, err := s.Snapshot(ctx, at)
	require.NoError(t, err)
	second, err := s.Snapshot(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, "backup_20240601_093000", first)
	assert.Equal(t, "backup_20240601_093000_01", second)

	require.NoError(t, s.Replace(ctx, []models.Customer{customer("x"), customer("y")}))
	require.NoError(t, s.Restore(ctx, first))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)

	ids, err := s.Snapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, ids)

	assert.ErrorIs(t, s.Restore(ctx, "nope"), interfaces.ErrSnapshotNotFound)
}

func TestPlaceholders(t *testing.T) {
	pg := &Store{dialect: Postgres}
	lite := &Store{dialect: SQLite}

	assert.Equal(t, "$1, $2, $3", pg.placeholders(1, 3))
	assert.Equal(t, "?, ?", lite.placeholders(1, 2))
}
