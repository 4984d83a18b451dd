package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/internal/currency"
	"github.com/tradelane/marketpay-backend/internal/disputes"
	"github.com/tradelane/marketpay-backend/internal/orders"
	"github.com/tradelane/marketpay-backend/internal/payments"
	"github.com/tradelane/marketpay-backend/internal/selleraccounts"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/outbox"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

func setupPayoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  total_paise INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_intent_id TEXT,
  currency TEXT NOT NULL DEFAULT 'INR',
  amount_minor INTEGER NOT NULL,
  amount_inr_paise INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  dispute_locked INTEGER NOT NULL DEFAULT 0,
  captured_at DATETIME,
  holding_started_at DATETIME,
  released_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS payment_payouts (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  gross_amount_paise INTEGER NOT NULL,
  commission_paise INTEGER NOT NULL,
  net_amount_paise INTEGER NOT NULL,
  rate_micros INTEGER NOT NULL DEFAULT 1000000,
  status TEXT NOT NULL DEFAULT 'created',
  provider_payout_ref TEXT,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payouts_payment_active
  ON payment_payouts (payment_id) WHERE status <> 'failed';
CREATE TABLE IF NOT EXISTS disputes (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  reason TEXT,
  resolved INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  resolved_at DATETIME
);
CREATE TABLE IF NOT EXISTS seller_payout_accounts (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  account_ref TEXT NOT NULL,
  verified INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
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
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type payoutTxRunner struct {
	db *gorm.DB
}

func (r payoutTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubPayoutProvider struct {
	result providers.PayoutResult
	err    error
	calls  int
	lastP  providers.PayoutParams
}

func (p *stubPayoutProvider) CreatePayout(_ context.Context, params providers.PayoutParams) (*providers.PayoutResult, error) {
	p.calls++
	p.lastP = params
	if p.err != nil {
		return nil, p.err
	}
	result := p.result
	return &result, nil
}

type stubCaptureProvider struct {
	name        enums.PaymentProvider
	refundCalls int
}

func (p *stubCaptureProvider) Name() enums.PaymentProvider { return p.name }

func (p *stubCaptureProvider) CreateIntent(context.Context, providers.IntentParams) (*providers.Intent, error) {
	return &providers.Intent{ProviderIntentID: "pi_stub"}, nil
}

func (p *stubCaptureProvider) RefundPayment(context.Context, providers.RefundParams) (string, error) {
	p.refundCalls++
	return "rf_stub", nil
}

func (p *stubCaptureProvider) VerifySignature([]byte, string) error { return nil }

type capturedEvents struct {
	events []outbox.DomainEvent
}

func (e *capturedEvents) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

type payoutFixture struct {
	db       *gorm.DB
	engine   *Engine
	provider *stubPayoutProvider
	stripe   *stubCaptureProvider
	emitter  *capturedEvents
	payments payments.Repository
	payouts  Repository
	orders   orders.Repository
	disputes disputes.Repository
	accounts selleraccounts.Repository
}

type payoutSvcEmitter struct {
	inner *capturedEvents
}

func (e payoutSvcEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return e.inner.Emit(ctx, tx, event)
}

func newPayoutFixture(t *testing.T) *payoutFixture {
	t.Helper()

	db := setupPayoutTestDB(t)
	provider := &stubPayoutProvider{
		result: providers.PayoutResult{ProviderPayoutRef: "pout_123", Status: enums.PayoutStatusProcessing},
	}
	stripeStub := &stubCaptureProvider{name: enums.ProviderStripe}
	razorpayStub := &stubCaptureProvider{name: enums.ProviderRazorpay}
	emitter := &capturedEvents{}

	paymentsRepo := payments.NewRepository(db)
	ordersRepo := orders.NewRepository(db)
	runner := payoutTxRunner{db: db}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:      paymentsRepo,
		Orders:    ordersRepo,
		Snapshots: noopSnapshotter{},
		Stripe:    stripeStub,
		Razorpay:  razorpayStub,
		Tx:        runner,
		Outbox:    payoutSvcEmitter{inner: emitter},
	})
	require.NoError(t, err)

	disputesRepo := disputes.NewRepository(db)
	accountsRepo := selleraccounts.NewRepository(db)

	engine, err := NewEngine(EngineParams{
		Payments:      paymentsRepo,
		Payouts:       NewRepository(db),
		Orders:        ordersRepo,
		Disputes:      disputesRepo,
		Accounts:      accountsRepo,
		Snapshots:     currency.NewSnapshotRepository(db),
		Payout:        provider,
		Stripe:        stripeStub,
		Razorpay:      razorpayStub,
		Transitions:   paymentsSvc,
		Tx:            runner,
		Outbox:        emitter,
		CommissionBps: 250,
	})
	require.NoError(t, err)

	return &payoutFixture{
		db:       db,
		engine:   engine,
		provider: provider,
		stripe:   stripeStub,
		emitter:  emitter,
		payments: paymentsRepo,
		payouts:  NewRepository(db),
		orders:   ordersRepo,
		disputes: disputesRepo,
		accounts: accountsRepo,
	}
}

type noopSnapshotter struct{}

func (noopSnapshotter) SnapshotForOrder(_ context.Context, orderID uuid.UUID, totalPaise int64, buyerCurrency enums.Currency) (*models.OrderCurrencySnapshot, error) {
	return &models.OrderCurrencySnapshot{
		ID:                  uuid.New(),
		OrderID:             orderID,
		BaseCurrency:        enums.CurrencyINR,
		BuyerCurrency:       buyerCurrency,
		RateMicros:          1_000_000,
		RateFetchedAt:       time.Now().UTC(),
		RateProvider:        "stub-fx",
		BaseTotalPaise:      totalPaise,
		ConvertedTotalMinor: totalPaise,
	}, nil
}

type holdingSetup struct {
	payment *models.Payment
	order   *models.Order
	account *models.SellerPayoutAccount
}

func (f *payoutFixture) seedHoldingPayment(t *testing.T, orderStatus enums.OrderStatus) holdingSetup {
	t.Helper()
	ctx := context.Background()

	order := &models.Order{
		ID:         uuid.New(),
		BuyerID:    uuid.New(),
		SellerID:   uuid.New(),
		Status:     orderStatus,
		TotalPaise: 100_000,
	}
	require.NoError(t, f.orders.Create(ctx, order))

	account := &models.SellerPayoutAccount{
		SellerID:   order.SellerID,
		Provider:   enums.ProviderRazorpay,
		AccountRef: "fa_" + uuid.NewString()[:8],
		Verified:   true,
	}
	require.NoError(t, f.accounts.Create(ctx, account))

	now := time.Now().UTC()
	held := now.Add(-8 * 24 * time.Hour)
	intentID := "pi_" + uuid.NewString()[:8]
	payment := &models.Payment{
		OrderID:          order.ID,
		Provider:         enums.ProviderStripe,
		ProviderIntentID: &intentID,
		Currency:         enums.CurrencyUSD,
		AmountMinor:      1195,
		AmountInrPaise:   100_000,
		Status:           enums.PaymentStatusHolding,
		CapturedAt:       &held,
		HoldingStartedAt: &held,
	}
	require.NoError(t, f.payments.Create(ctx, payment))
	return holdingSetup{payment: payment, order: order, account: account}
}

func TestReleaseHappyPath(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	payout, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusProcessing, payout.Status)
	require.Equal(t, int64(100_000), payout.GrossAmountPaise)
	require.Equal(t, int64(2_500), payout.CommissionPaise)
	require.Equal(t, int64(97_500), payout.NetAmountPaise)
	require.Equal(t, "pout_123", *payout.ProviderPayoutRef)
	require.Equal(t, setup.account.AccountRef, f.provider.lastP.AccountRef)
	require.Equal(t, int64(97_500), f.provider.lastP.NetAmountPaise)

	released, err := f.payments.FindByID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusReleased, released.Status)
	require.NotNil(t, released.ReleasedAt)

	order, err := f.orders.FindByID(ctx, setup.order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCompleted, order.Status)

	require.Len(t, f.emitter.events, 1)
	require.Equal(t, enums.EventPaymentReleased, f.emitter.events[0].EventType)
}

func TestReleaseIdempotentOnReleasedPayment(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	first, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.NoError(t, err)

	second, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.provider.calls, "second release must not move money again")

	rows, err := f.payouts.ListByPaymentID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestReleaseRejectsDisputeLockedPayment(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	setup.payment.DisputeLocked = true
	require.NoError(t, f.payments.Update(ctx, setup.payment))

	_, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 0, f.provider.calls)
}

func TestReleaseLocksPaymentOnUnresolvedDispute(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	require.NoError(t, f.disputes.Create(ctx, &models.Dispute{
		OrderID: setup.order.ID,
		Reason:  "item not as described",
	}))

	_, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	locked, err := f.payments.FindByID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.True(t, locked.DisputeLocked, "unresolved dispute locks the payment")
	require.Equal(t, 0, f.provider.calls)
}

func TestReleaseDisputeRejectsEvenWhenAdminForced(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	setup.payment.DisputeLocked = true
	require.NoError(t, f.payments.Update(ctx, setup.payment))

	_, err := f.engine.Release(ctx, setup.payment.ID, true)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestReleaseRequiresDeliveryUnlessAdminForced(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusShipped)

	_, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 0, f.provider.calls)

	payout, err := f.engine.Release(ctx, setup.payment.ID, true)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusProcessing, payout.Status)
}

func TestReleaseRequiresVerifiedAccount(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	require.NoError(t, f.accounts.SetVerified(ctx, setup.order.SellerID, false))

	_, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 0, f.provider.calls)
}

func TestReleaseProviderFailureLeavesPaymentHolding(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	f.provider.err = pkgerrors.New(pkgerrors.CodeDependency, "razorpayx unavailable")

	_, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	payment, err := f.payments.FindByID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusHolding, payment.Status, "failed payout leaves escrow intact")

	rows, err := f.payouts.ListByPaymentID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.PayoutStatusFailed, rows[0].Status)
	require.Contains(t, *rows[0].FailureReason, "razorpayx unavailable")

	require.Len(t, f.emitter.events, 1)
	require.Equal(t, enums.EventPayoutFailed, f.emitter.events[0].EventType)

	// retry succeeds and supersedes the failed attempt
	f.provider.err = nil
	payout, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusProcessing, payout.Status)

	rows, err = f.payouts.ListByPaymentID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestCommissionMath(t *testing.T) {
	f := newPayoutFixture(t)

	cases := []struct {
		gross      int64
		commission int64
	}{
		{gross: 10_000, commission: 250},
		{gross: 100_000, commission: 2_500},
		{gross: 39, commission: 0},
		{gross: 40, commission: 1},
		{gross: 19_999, commission: 499},
	}
	for _, tc := range cases {
		require.Equal(t, tc.commission, f.engine.CommissionPaise(tc.gross), "gross %d", tc.gross)
	}
}

func TestAdminHold(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	require.NoError(t, f.engine.AdminHold(ctx, setup.payment.ID))
	require.NoError(t, f.engine.AdminHold(ctx, setup.payment.ID))

	held, err := f.payments.FindByID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.True(t, held.DisputeLocked)

	_, err = f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func (f *payoutFixture) seedPayoutRow(t *testing.T, setup holdingSetup, age time.Duration) *models.PaymentPayout {
	t.Helper()
	ctx := context.Background()

	payout := &models.PaymentPayout{
		PaymentID:        setup.payment.ID,
		SellerID:         setup.order.SellerID,
		GrossAmountPaise: setup.payment.AmountInrPaise,
		CommissionPaise:  2_500,
		NetAmountPaise:   97_500,
		RateMicros:       1_000_000,
		Status:           enums.PayoutStatusCreated,
	}
	require.NoError(t, f.payouts.Create(ctx, payout))
	if age > 0 {
		payout.CreatedAt = time.Now().UTC().Add(-age)
		require.NoError(t, f.payouts.Update(ctx, payout))
	}
	return payout
}

func TestAdminRefundRejectsWhilePayoutActive(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)
	f.seedPayoutRow(t, setup, 0)

	_, err := f.engine.AdminRefund(ctx, setup.payment.ID, "buyer complaint upheld")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 0, f.stripe.refundCalls, "refund must not race an in-flight payout")

	payment, err := f.payments.FindByID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusHolding, payment.Status)

	rows, err := f.payouts.ListByPaymentID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.PayoutStatusCreated, rows[0].Status)
}

func TestAdminRefundSupersedesAbandonedPayout(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)
	f.seedPayoutRow(t, setup, time.Hour)

	refunded, err := f.engine.AdminRefund(ctx, setup.payment.ID, "seller unresponsive")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, refunded.Status)
	require.Equal(t, 1, f.stripe.refundCalls)

	rows, err := f.payouts.ListByPaymentID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.PayoutStatusFailed, rows[0].Status)
	require.Contains(t, *rows[0].FailureReason, "abandoned")
}

func TestReleaseSupersedesAbandonedPayoutWhenAdminForced(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)
	f.seedPayoutRow(t, setup, time.Hour)

	_, err := f.engine.Release(ctx, setup.payment.ID, false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict),
		"sweep releases never supersede an attempt on their own")
	require.Equal(t, 0, f.provider.calls)

	payout, err := f.engine.Release(ctx, setup.payment.ID, true)
	require.NoError(t, err)
	require.Equal(t, enums.PayoutStatusProcessing, payout.Status)

	rows, err := f.payouts.ListByPaymentID(ctx, setup.payment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, enums.PayoutStatusFailed, rows[0].Status)
}

func TestReleaseAdminForceKeepsFreshPayoutBlocking(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)
	f.seedPayoutRow(t, setup, 0)

	_, err := f.engine.Release(ctx, setup.payment.ID, true)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 0, f.provider.calls)
}

func TestAdminRefund(t *testing.T) {
	f := newPayoutFixture(t)
	ctx := context.Background()
	setup := f.seedHoldingPayment(t, enums.OrderStatusDelivered)

	refunded, err := f.engine.AdminRefund(ctx, setup.payment.ID, "buyer complaint upheld")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)
	require.Equal(t, 1, f.stripe.refundCalls)

	order, err := f.orders.FindByID(ctx, setup.order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, order.Status)

	_, err = f.engine.AdminRefund(ctx, setup.payment.ID, "again")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}
