package currency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

func setupSnapshotTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS order_currency_snapshots (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  base_currency TEXT NOT NULL DEFAULT 'INR',
  buyer_currency TEXT NOT NULL,
  rate_micros INTEGER NOT NULL,
  rate_fetched_at DATETIME NOT NULL,
  rate_provider TEXT NOT NULL,
  base_total_paise INTEGER NOT NULL,
  converted_total_minor INTEGER NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_currency_snapshots_order ON order_currency_snapshots (order_id);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type fixedRateSource struct {
	rate  *Rate
	err   error
	calls int
}

func (s *fixedRateSource) GetRate(context.Context, enums.Currency) (*Rate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rate, nil
}

func newTestSnapshotter(t *testing.T, db *gorm.DB, rates *fixedRateSource) *Snapshotter {
	t.Helper()

	snapshotter, err := NewSnapshotter(SnapshotterParams{
		Repo:  NewSnapshotRepository(db),
		Rates: rates,
	})
	require.NoError(t, err)
	return snapshotter
}

func TestSnapshotForOrderCreatesOnce(t *testing.T) {
	db := setupSnapshotTestDB(t)
	rates := &fixedRateSource{rate: &Rate{
		RateMicros: 11950,
		FetchedAt:  time.Now().UTC(),
		Provider:   "stub-fx",
	}}
	snapshotter := newTestSnapshotter(t, db, rates)
	ctx := context.Background()
	orderID := uuid.New()

	first, err := snapshotter.SnapshotForOrder(ctx, orderID, 19999, enums.CurrencyUSD)
	require.NoError(t, err)
	require.Equal(t, int64(11950), first.RateMicros)
	require.Equal(t, int64(239), first.ConvertedTotalMinor)
	require.Equal(t, enums.CurrencyINR, first.BaseCurrency)

	// second call returns the frozen row even if the live rate moved
	rates.rate = &Rate{RateMicros: 99999, FetchedAt: time.Now().UTC(), Provider: "stub-fx"}
	second, err := snapshotter.SnapshotForOrder(ctx, orderID, 19999, enums.CurrencyUSD)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(11950), second.RateMicros)
	require.Equal(t, 1, rates.calls)
}

func TestSnapshotForOrderValidation(t *testing.T) {
	db := setupSnapshotTestDB(t)
	snapshotter := newTestSnapshotter(t, db, &fixedRateSource{rate: &Rate{RateMicros: 11950}})
	ctx := context.Background()

	_, err := snapshotter.SnapshotForOrder(ctx, uuid.New(), 0, enums.CurrencyUSD)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = snapshotter.SnapshotForOrder(ctx, uuid.New(), 1000, enums.Currency("XYZ"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSnapshotForOrderRateUnavailable(t *testing.T) {
	db := setupSnapshotTestDB(t)
	rates := &fixedRateSource{err: pkgerrors.New(pkgerrors.CodeDependency, "no exchange rate available for USD")}
	snapshotter := newTestSnapshotter(t, db, rates)

	_, err := snapshotter.SnapshotForOrder(context.Background(), uuid.New(), 19999, enums.CurrencyUSD)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	db := setupSnapshotTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	require.NoError(t, repo.Create(ctx, newSnapshotRow(orderID)))

	found, err := repo.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, orderID, found.OrderID)

	// sqlite enforces the same uniqueness the postgres index does
	err = repo.Create(ctx, newSnapshotRow(orderID))
	require.Error(t, err)
}

func newSnapshotRow(orderID uuid.UUID) *models.OrderCurrencySnapshot {
	return &models.OrderCurrencySnapshot{
		ID:                  uuid.New(),
		OrderID:             orderID,
		BaseCurrency:        enums.CurrencyINR,
		BuyerCurrency:       enums.CurrencyUSD,
		RateMicros:          11950,
		RateFetchedAt:       time.Now().UTC(),
		RateProvider:        "stub-fx",
		BaseTotalPaise:      19999,
		ConvertedTotalMinor: 239,
	}
}
