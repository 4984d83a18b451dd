package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

func TestLockFundsSetsAndClearsDisputeLock(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	order := f.newOrder(t, buyerID, enums.OrderStatusPendingPayment)

	result, err := f.svc.CreateOrRetrieveIntent(ctx, order.ID, buyerID, enums.CurrencyUSD)
	require.NoError(t, err)

	require.NoError(t, f.svc.LockFunds(ctx, order.ID))

	repo := NewRepository(f.db)
	locked, err := repo.FindByID(ctx, result.Payment.ID)
	require.NoError(t, err)
	require.True(t, locked.DisputeLocked)

	require.NoError(t, f.svc.UnlockFunds(ctx, order.ID))
	unlocked, err := repo.FindByID(ctx, result.Payment.ID)
	require.NoError(t, err)
	require.False(t, unlocked.DisputeLocked)
}

func TestLockFundsIdempotent(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	order := f.newOrder(t, buyerID, enums.OrderStatusPendingPayment)

	_, err := f.svc.CreateOrRetrieveIntent(ctx, order.ID, buyerID, enums.CurrencyUSD)
	require.NoError(t, err)

	require.NoError(t, f.svc.LockFunds(ctx, order.ID))
	require.NoError(t, f.svc.LockFunds(ctx, order.ID))
}

func TestLockFundsNoActivePayment(t *testing.T) {
	f := newPaymentsFixture(t)

	err := f.svc.LockFunds(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestLockFundsRejectsSettledPayment(t *testing.T) {
	f := newPaymentsFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	order := f.newOrder(t, buyerID, enums.OrderStatusPendingPayment)

	result, err := f.svc.CreateOrRetrieveIntent(ctx, order.ID, buyerID, enums.CurrencyINR)
	require.NoError(t, err)

	runner := sqliteTxRunner{db: f.db}
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		_, txErr := f.svc.ApplyCaptureTx(ctx, tx, enums.ProviderRazorpay, *result.Payment.ProviderIntentID)
		return txErr
	}))
	require.NoError(t, runner.WithTx(ctx, func(tx *gorm.DB) error {
		_, txErr := f.svc.ApplyRefundTx(ctx, tx, enums.ProviderRazorpay, *result.Payment.ProviderIntentID)
		return txErr
	}))

	err = f.svc.LockFunds(ctx, order.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
