package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/internal/orders"
	dbpkg "github.com/tradelane/marketpay-backend/pkg/db"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
	"github.com/tradelane/marketpay-backend/pkg/outbox"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Snapshotter freezes an order's exchange rate at checkout.
type Snapshotter interface {
	SnapshotForOrder(ctx context.Context, orderID uuid.UUID, totalPaise int64, buyerCurrency enums.Currency) (*models.OrderCurrencySnapshot, error)
}

// OutboxEmitter queues domain events inside the caller's transaction.
type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Repo      Repository
	Orders    orders.Repository
	Snapshots Snapshotter
	Stripe    providers.PaymentProvider
	Razorpay  providers.PaymentProvider
	Tx        txRunner
	Outbox    OutboxEmitter
	Logger    *logger.Logger
}

// Service manages the payment lifecycle from intent creation through escrow.
type Service struct {
	repo      Repository
	orders    orders.Repository
	snapshots Snapshotter
	stripe    providers.PaymentProvider
	razorpay  providers.PaymentProvider
	tx        txRunner
	outbox    OutboxEmitter
	logg      *logger.Logger
}

// NewService builds the payments service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo is required")
	}
	if params.Snapshots == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshotter is required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe provider is required")
	}
	if params.Razorpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "razorpay provider is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner is required")
	}
	return &Service{
		repo:      params.Repo,
		orders:    params.Orders,
		snapshots: params.Snapshots,
		stripe:    params.Stripe,
		razorpay:  params.Razorpay,
		tx:        params.Tx,
		outbox:    params.Outbox,
		logg:      params.Logger,
	}, nil
}

// IntentResult pairs the persisted payment with the provider client secret.
type IntentResult struct {
	Payment      *models.Payment
	ClientSecret string
}

// providerFor routes INR charges to Razorpay and foreign charges to Stripe.
func (s *Service) providerFor(c enums.Currency) providers.PaymentProvider {
	if c == enums.CurrencyINR {
		return s.razorpay
	}
	return s.stripe
}

// CreateOrRetrieveIntent returns the order's active payment, creating a
// provider intent and a CREATED payment on first call. A FAILED payment is
// retried in place with a fresh intent.
func (s *Service) CreateOrRetrieveIntent(ctx context.Context, orderID, buyerID uuid.UUID, buyerCurrency enums.Currency) (*IntentResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if !order.Status.IsPrePayment() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	existing, err := s.repo.FindActiveByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != enums.PaymentStatusFailed {
		return &IntentResult{Payment: existing}, nil
	}

	snapshot, err := s.snapshots.SnapshotForOrder(ctx, orderID, order.TotalPaise, buyerCurrency)
	if err != nil {
		return nil, err
	}

	provider := s.providerFor(snapshot.BuyerCurrency)
	intent, err := provider.CreateIntent(ctx, providers.IntentParams{
		OrderID:     orderID,
		AmountMinor: snapshot.ConvertedTotalMinor,
		Currency:    snapshot.BuyerCurrency,
	})
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// FAILED payment retries on the same row with the new intent
		if err := ValidateTransition(existing.Status, enums.PaymentStatusCreated); err != nil {
			return nil, err
		}
		existing.Status = enums.PaymentStatusCreated
		existing.Provider = provider.Name()
		existing.ProviderIntentID = &intent.ProviderIntentID
		existing.Currency = snapshot.BuyerCurrency
		existing.AmountMinor = snapshot.ConvertedTotalMinor
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return &IntentResult{Payment: existing, ClientSecret: intent.ClientSecret}, nil
	}

	payment := &models.Payment{
		OrderID:          orderID,
		Provider:         provider.Name(),
		ProviderIntentID: &intent.ProviderIntentID,
		Currency:         snapshot.BuyerCurrency,
		AmountMinor:      snapshot.ConvertedTotalMinor,
		AmountInrPaise:   order.TotalPaise,
		Status:           enums.PaymentStatusCreated,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		// a concurrent pay request won the insert
		if dbpkg.IsUniqueViolation(err, "ux_payments_order_active") {
			winner, findErr := s.repo.FindActiveByOrderID(ctx, orderID)
			if findErr != nil {
				return nil, findErr
			}
			return &IntentResult{Payment: winner}, nil
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithPaymentID(s.logg.WithOrderID(ctx, orderID.String()), payment.ID.String())
		s.logg.Info(logCtx, fmt.Sprintf("payment intent created via %s", provider.Name()))
	}
	return &IntentResult{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// GetPaymentForOrder returns the latest payment for an order owned by buyerID.
func (s *Service) GetPaymentForOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Payment, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}

	payment, err := s.repo.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}

// ApplyCaptureTx moves a payment CREATED→CAPTURED→HOLDING inside the caller's
// transaction, marks the order paid, and queues the captured event.
func (s *Service) ApplyCaptureTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	payment, err := repo.FindByProviderIntentForUpdate(ctx, provider, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for provider intent")
		}
		return nil, err
	}

	if err := ValidateTransition(payment.Status, enums.PaymentStatusCaptured); err != nil {
		return nil, err
	}
	if err := ValidateTransition(enums.PaymentStatusCaptured, enums.PaymentStatusHolding); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment.Status = enums.PaymentStatusHolding
	payment.CapturedAt = &now
	payment.HoldingStartedAt = &now
	if err := repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.orders.WithTx(tx).UpdateStatus(ctx, payment.OrderID, enums.OrderStatusPaid); err != nil {
		return nil, err
	}

	if err := s.emitPaymentEvent(ctx, tx, enums.EventPaymentCaptured, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ApplyFailureTx marks a payment FAILED inside the caller's transaction.
func (s *Service) ApplyFailureTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	payment, err := repo.FindByProviderIntentForUpdate(ctx, provider, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for provider intent")
		}
		return nil, err
	}

	if err := ValidateTransition(payment.Status, enums.PaymentStatusFailed); err != nil {
		return nil, err
	}

	payment.Status = enums.PaymentStatusFailed
	if err := repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.emitPaymentEvent(ctx, tx, enums.EventPaymentFailed, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ApplyRefundTx marks a HOLDING payment REFUNDED inside the caller's
// transaction and cancels the order.
func (s *Service) ApplyRefundTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	payment, err := repo.FindByProviderIntentForUpdate(ctx, provider, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for provider intent")
		}
		return nil, err
	}

	if err := ValidateTransition(payment.Status, enums.PaymentStatusRefunded); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment.Status = enums.PaymentStatusRefunded
	payment.RefundedAt = &now
	if err := repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.orders.WithTx(tx).UpdateStatus(ctx, payment.OrderID, enums.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if err := s.emitPaymentEvent(ctx, tx, enums.EventPaymentRefunded, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) emitPaymentEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payment *models.Payment) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
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
