// Package payouts releases escrowed funds to sellers. Release eligibility
// checks and the payout row are committed before the provider call so a
// crash mid-transfer leaves an auditable attempt behind.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/internal/currency"
	"github.com/tradelane/marketpay-backend/internal/disputes"
	"github.com/tradelane/marketpay-backend/internal/orders"
	"github.com/tradelane/marketpay-backend/internal/payments"
	"github.com/tradelane/marketpay-backend/internal/selleraccounts"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
	"github.com/tradelane/marketpay-backend/pkg/outbox"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

const inrRateMicros = 1_000_000

// stalePayoutCutoff bounds how long a CREATED payout row can sit without a
// provider outcome before an admin action may supersede it. A row younger
// than this may still have a transfer in flight.
const stalePayoutCutoff = 15 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxEmitter queues domain events inside the caller's transaction.
type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentTransitioner interface {
	ApplyRefundTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error)
}

// EngineParams groups dependencies for the payout engine.
type EngineParams struct {
	Payments      payments.Repository
	Payouts       Repository
	Orders        orders.Repository
	Disputes      disputes.Reader
	Accounts      selleraccounts.Reader
	Snapshots     currency.SnapshotRepository
	Payout        providers.PayoutProvider
	Stripe        providers.PaymentProvider
	Razorpay      providers.PaymentProvider
	Transitions   paymentTransitioner
	Tx            txRunner
	Outbox        OutboxEmitter
	Logger        *logger.Logger
	CommissionBps int64
}

// Engine validates release eligibility, computes commission, and moves money.
type Engine struct {
	payments      payments.Repository
	payouts       Repository
	orders        orders.Repository
	disputes      disputes.Reader
	accounts      selleraccounts.Reader
	snapshots     currency.SnapshotRepository
	payout        providers.PayoutProvider
	stripe        providers.PaymentProvider
	razorpay      providers.PaymentProvider
	transitions   paymentTransitioner
	tx            txRunner
	outbox        OutboxEmitter
	logg          *logger.Logger
	commissionBps int64
}

// NewEngine builds the payout engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo is required")
	}
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repo is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo is required")
	}
	if params.Disputes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "disputes reader is required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seller accounts reader is required")
	}
	if params.Payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payout provider is required")
	}
	if params.Transitions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment transitioner is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner is required")
	}
	if params.CommissionBps < 0 || params.CommissionBps > 10_000 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission bps out of range")
	}
	return &Engine{
		payments:      params.Payments,
		payouts:       params.Payouts,
		orders:        params.Orders,
		disputes:      params.Disputes,
		accounts:      params.Accounts,
		snapshots:     params.Snapshots,
		payout:        params.Payout,
		stripe:        params.Stripe,
		razorpay:      params.Razorpay,
		transitions:   params.Transitions,
		tx:            params.Tx,
		outbox:        params.Outbox,
		logg:          params.Logger,
		commissionBps: params.CommissionBps,
	}, nil
}

// CommissionPaise returns the platform cut for a gross INR amount.
func (e *Engine) CommissionPaise(grossPaise int64) int64 {
	return grossPaise * e.commissionBps / 10_000
}

// Release moves a HOLDING payment to RELEASED and pays the seller. Calling it
// on an already RELEASED payment returns the existing payout unchanged.
// Eligibility checks and the payout attempt row commit before the provider
// call; the provider outcome commits separately so a failed transfer leaves
// the payment in HOLDING for retry.
func (e *Engine) Release(ctx context.Context, paymentID uuid.UUID, adminForce bool) (*models.PaymentPayout, error) {
	var (
		payout   *models.PaymentPayout
		account  *models.SellerPayoutAccount
		existing *models.PaymentPayout
	)

	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentRepo := e.payments.WithTx(tx)
		payment, err := paymentRepo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return err
		}

		if payment.Status == enums.PaymentStatusReleased {
			existing, err = e.payouts.WithTx(tx).FindActiveByPaymentID(ctx, paymentID)
			if err != nil {
				return err
			}
			return nil
		}

		if err := payments.ValidateTransition(payment.Status, enums.PaymentStatusReleased); err != nil {
			return err
		}
		if payment.DisputeLocked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is dispute locked")
		}
		open, err := e.disputes.HasUnresolvedDispute(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if open {
			payment.DisputeLocked = true
			if updateErr := paymentRepo.Update(ctx, payment); updateErr != nil {
				return updateErr
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has an unresolved dispute")
		}

		order, err := e.orders.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if !adminForce && !order.Status.IsDelivered() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not delivered")
		}

		if active, err := e.payouts.WithTx(tx).FindActiveByPaymentID(ctx, paymentID); err == nil {
			superseded := false
			if adminForce {
				superseded, err = e.supersedeStaleAttempt(ctx, tx, active)
				if err != nil {
					return err
				}
			}
			if !superseded {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payout already in flight for payment")
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		account, err = e.accounts.FindBySellerID(ctx, order.SellerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "seller payout account not found")
			}
			return err
		}
		if !account.Verified {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "seller payout account not verified")
		}

		gross := payment.AmountInrPaise
		commission := e.CommissionPaise(gross)
		payout = &models.PaymentPayout{
			PaymentID:        paymentID,
			SellerID:         order.SellerID,
			GrossAmountPaise: gross,
			CommissionPaise:  commission,
			NetAmountPaise:   gross - commission,
			RateMicros:       e.auditRateMicros(ctx, payment),
			Status:           enums.PayoutStatusCreated,
		}
		return e.payouts.WithTx(tx).Create(ctx, payout)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	result, providerErr := e.payout.CreatePayout(ctx, providers.PayoutParams{
		AccountRef:     account.AccountRef,
		NetAmountPaise: payout.NetAmountPaise,
		Reference:      payout.ID.String(),
		Narration:      fmt.Sprintf("order settlement %s", payout.PaymentID),
	})
	if providerErr != nil {
		if failErr := e.markPayoutFailed(ctx, payout, providerErr); failErr != nil {
			return nil, failErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, providerErr, "payout provider failed")
	}

	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		paymentRepo := e.payments.WithTx(tx)
		payment, err := paymentRepo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payments.ValidateTransition(payment.Status, enums.PaymentStatusReleased); err != nil {
			return err
		}

		now := time.Now().UTC()
		payment.Status = enums.PaymentStatusReleased
		payment.ReleasedAt = &now
		if err := paymentRepo.Update(ctx, payment); err != nil {
			return err
		}

		payout.Status = result.Status
		payout.ProviderPayoutRef = &result.ProviderPayoutRef
		if err := e.payouts.WithTx(tx).Update(ctx, payout); err != nil {
			return err
		}

		if err := e.orders.WithTx(tx).UpdateStatus(ctx, payment.OrderID, enums.OrderStatusCompleted); err != nil {
			return err
		}

		return e.emitReleaseEvent(ctx, tx, payment, payout)
	})
	if err != nil {
		return nil, err
	}

	if e.logg != nil {
		logCtx := e.logg.WithPaymentID(ctx, paymentID.String())
		e.logg.Info(logCtx, fmt.Sprintf("payout %s queued, net %d paise", payout.ID, payout.NetAmountPaise))
	}
	return payout, nil
}

// AdminHold force-sets the dispute lock on a payment by id.
func (e *Engine) AdminHold(ctx context.Context, paymentID uuid.UUID) error {
	return e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.payments.WithTx(tx)
		payment, err := repo.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return err
		}
		if payment.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled")
		}
		if payment.DisputeLocked {
			return nil
		}
		payment.DisputeLocked = true
		return repo.Update(ctx, payment)
	})
}

// AdminRefund refunds a HOLDING payment through its capture provider and
// cancels the order.
func (e *Engine) AdminRefund(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	payment, err := e.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	if err := payments.ValidateTransition(payment.Status, enums.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	if payment.ProviderIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no provider intent")
	}

	// A non-failed payout means a seller transfer is in flight or has already
	// been recorded; refunding the buyer on top of it would pay twice.
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		active, txErr := e.payouts.WithTx(tx).FindActiveByPaymentID(ctx, paymentID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return nil
			}
			return txErr
		}
		superseded, txErr := e.supersedeStaleAttempt(ctx, tx, active)
		if txErr != nil {
			return txErr
		}
		if !superseded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout already in flight for payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	provider, err := e.captureProvider(payment.Provider)
	if err != nil {
		return nil, err
	}
	if _, err := provider.RefundPayment(ctx, providers.RefundParams{
		ProviderIntentID: *payment.ProviderIntentID,
		AmountMinor:      payment.AmountMinor,
		Reason:           reason,
	}); err != nil {
		return nil, err
	}

	var refunded *models.Payment
	err = e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		refunded, txErr = e.transitions.ApplyRefundTx(ctx, tx, payment.Provider, *payment.ProviderIntentID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return refunded, nil
}

func (e *Engine) captureProvider(name enums.PaymentProvider) (providers.PaymentProvider, error) {
	switch name {
	case enums.ProviderStripe:
		if e.stripe != nil {
			return e.stripe, nil
		}
	case enums.ProviderRazorpay:
		if e.razorpay != nil {
			return e.razorpay, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no capture provider configured for %s", name))
}

// auditRateMicros records the snapshot rate on the payout row. INR orders
// have no snapshot and settle at identity.
func (e *Engine) auditRateMicros(ctx context.Context, payment *models.Payment) int64 {
	if e.snapshots == nil || payment.Currency == enums.CurrencyINR {
		return inrRateMicros
	}
	snapshot, err := e.snapshots.FindByOrderID(ctx, payment.OrderID)
	if err != nil {
		return inrRateMicros
	}
	return snapshot.RateMicros
}

// supersedeStaleAttempt fails a payout row that committed but never reached
// the provider, unblocking the payment for a new attempt. Only CREATED rows
// older than stalePayoutCutoff qualify; the operator is expected to confirm
// against the provider ledger before forcing a new transfer.
func (e *Engine) supersedeStaleAttempt(ctx context.Context, tx *gorm.DB, payout *models.PaymentPayout) (bool, error) {
	if payout.Status != enums.PayoutStatusCreated {
		return false, nil
	}
	if time.Since(payout.CreatedAt) < stalePayoutCutoff {
		return false, nil
	}
	reason := "abandoned before provider transfer"
	payout.Status = enums.PayoutStatusFailed
	payout.FailureReason = &reason
	if err := e.payouts.WithTx(tx).Update(ctx, payout); err != nil {
		return false, err
	}
	if e.logg != nil {
		logCtx := e.logg.WithPaymentID(ctx, payout.PaymentID.String())
		e.logg.Warn(logCtx, fmt.Sprintf("payout %s superseded after idling in created", payout.ID))
	}
	return true, nil
}

func (e *Engine) markPayoutFailed(ctx context.Context, payout *models.PaymentPayout, cause error) error {
	return e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reason := cause.Error()
		payout.Status = enums.PayoutStatusFailed
		payout.FailureReason = &reason
		if err := e.payouts.WithTx(tx).Update(ctx, payout); err != nil {
			return err
		}
		if e.logg != nil {
			logCtx := e.logg.WithPaymentID(ctx, payout.PaymentID.String())
			e.logg.Warn(logCtx, fmt.Sprintf("payout %s failed: %s", payout.ID, reason))
		}
		if e.outbox == nil {
			return nil
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutFailed,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: outbox.PayoutEventData{
				PayoutID:       payout.ID,
				PaymentID:      payout.PaymentID,
				SellerID:       payout.SellerID,
				NetAmountPaise: payout.NetAmountPaise,
				Status:         payout.Status,
				FailureReason:  reason,
			},
		})
	})
}

func (e *Engine) emitReleaseEvent(ctx context.Context, tx *gorm.DB, payment *models.Payment, payout *models.PaymentPayout) error {
	if e.outbox == nil {
		return nil
	}
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentReleased,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Version:       1,
		Data: outbox.PaymentEventData{
			PaymentID:      payment.ID,
			OrderID:        payment.OrderID,
			Provider:       payment.Provider.String(),
			Status:         payment.Status,
			Currency:       payment.Currency,
			AmountMinor:    payment.AmountMinor,
			AmountInrPaise: payment.AmountInrPaise,
		},
	})
}
