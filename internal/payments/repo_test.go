package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/tradelane/marketpay-backend/pkg/db"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
)

func seedPayment(t *testing.T, repo Repository, orderID uuid.UUID, status enums.PaymentStatus, mutate ...func(*models.Payment)) *models.Payment {
	t.Helper()

	intentID := "pi_" + uuid.NewString()[:8]
	payment := &models.Payment{
		OrderID:          orderID,
		Provider:         enums.ProviderStripe,
		ProviderIntentID: &intentID,
		Currency:         enums.CurrencyUSD,
		AmountMinor:      239,
		AmountInrPaise:   19999,
		Status:           status,
	}
	for _, fn := range mutate {
		fn(payment)
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func TestActivePaymentUniquePerOrder(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	seedPayment(t, repo, orderID, enums.PaymentStatusCreated)

	intentID := "pi_dup"
	err := repo.Create(ctx, &models.Payment{
		OrderID:          orderID,
		Provider:         enums.ProviderStripe,
		ProviderIntentID: &intentID,
		Currency:         enums.CurrencyUSD,
		AmountMinor:      100,
		AmountInrPaise:   8400,
		Status:           enums.PaymentStatusCreated,
	})
	require.Error(t, err)
	require.True(t, dbpkg.IsUniqueViolation(err, ""))
}

func TestTerminalPaymentDoesNotBlockNewActive(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	seedPayment(t, repo, orderID, enums.PaymentStatusRefunded)
	fresh := seedPayment(t, repo, orderID, enums.PaymentStatusCreated)

	active, err := repo.FindActiveByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, active.ID)
}

func TestFindActiveSkipsTerminalRows(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	seedPayment(t, repo, orderID, enums.PaymentStatusReleased)

	_, err := repo.FindActiveByOrderID(ctx, orderID)
	require.Error(t, err)
}

func TestFindByProviderIntent(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	payment := seedPayment(t, repo, uuid.New(), enums.PaymentStatusCreated)

	found, err := repo.FindByProviderIntent(ctx, enums.ProviderStripe, *payment.ProviderIntentID)
	require.NoError(t, err)
	require.Equal(t, payment.ID, found.ID)

	_, err = repo.FindByProviderIntent(ctx, enums.ProviderRazorpay, *payment.ProviderIntentID)
	require.Error(t, err, "intent ids are scoped per provider")
}

func TestListAutoReleasableBoundaries(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	cutoff := now.Add(-7 * 24 * time.Hour)

	holdingAt := func(p *models.Payment, age time.Duration) {
		started := now.Add(-age)
		p.HoldingStartedAt = &started
	}

	eligible := seedPayment(t, repo, uuid.New(), enums.PaymentStatusHolding, func(p *models.Payment) {
		holdingAt(p, 8*24*time.Hour)
	})
	older := seedPayment(t, repo, uuid.New(), enums.PaymentStatusHolding, func(p *models.Payment) {
		holdingAt(p, 10*24*time.Hour)
	})
	seedPayment(t, repo, uuid.New(), enums.PaymentStatusHolding, func(p *models.Payment) {
		holdingAt(p, 5*24*time.Hour)
	})
	seedPayment(t, repo, uuid.New(), enums.PaymentStatusHolding, func(p *models.Payment) {
		holdingAt(p, 9*24*time.Hour)
		p.DisputeLocked = true
	})
	seedPayment(t, repo, uuid.New(), enums.PaymentStatusCreated)

	rows, err := repo.ListAutoReleasable(ctx, cutoff, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, older.ID, rows[0].ID, "oldest escrow drains first")
	require.Equal(t, eligible.ID, rows[1].ID)
}

func TestListAutoReleasableRespectsLimit(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		seedPayment(t, repo, uuid.New(), enums.PaymentStatusHolding, func(p *models.Payment) {
			started := now.Add(-time.Duration(8+i) * 24 * time.Hour)
			p.HoldingStartedAt = &started
		})
	}

	rows, err := repo.ListAutoReleasable(ctx, now.Add(-7*24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
