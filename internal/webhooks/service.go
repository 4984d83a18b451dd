// Package webhooks ingests provider notifications and drives payment state.
// Every delivery is logged before its effect is applied; the effect and the
// processed flag commit in one transaction, so a crash between the two leaves
// a retryable unprocessed row rather than a lost or doubled transition.
package webhooks

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/internal/payouts"
	dbpkg "github.com/tradelane/marketpay-backend/pkg/db"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
	"github.com/tradelane/marketpay-backend/pkg/outbox"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

type eventAction int

const (
	actionIgnore eventAction = iota
	actionCapture
	actionFail
	actionRefund
	actionPayoutUpdate
)

// inboundEvent is the provider-neutral form both parsers normalize into.
type inboundEvent struct {
	key          string
	eventType    string
	action       eventAction
	intentID     string
	payoutRef    string
	payoutStatus enums.PayoutStatus
	failReason   string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentTransitions interface {
	ApplyCaptureTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error)
	ApplyFailureTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error)
	ApplyRefundTx(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, intentID string) (*models.Payment, error)
}

// OutboxEmitter queues domain events inside the caller's transaction.
type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the webhook ingestor.
type ServiceParams struct {
	Events   EventRepository
	Payments paymentTransitions
	Payouts  payouts.Repository
	Stripe   providers.PaymentProvider
	Razorpay providers.PaymentProvider
	Tx       txRunner
	Outbox   OutboxEmitter
	Logger   *logger.Logger
}

// Service verifies, deduplicates, and applies provider webhook deliveries.
type Service struct {
	events   EventRepository
	payments paymentTransitions
	payouts  payouts.Repository
	stripe   providers.PaymentProvider
	razorpay providers.PaymentProvider
	tx       txRunner
	outbox   OutboxEmitter
	logg     *logger.Logger
}

// NewService builds the webhook ingestor.
func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook event repo is required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment transitions are required")
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
		events:   params.Events,
		payments: params.Payments,
		payouts:  params.Payouts,
		stripe:   params.Stripe,
		razorpay: params.Razorpay,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

// Handle verifies the delivery signature, logs the event, and applies its
// effect. A replayed event that already processed is a no-op; an event whose
// effect previously failed is retried on redelivery.
func (s *Service) Handle(ctx context.Context, provider enums.PaymentProvider, payload []byte, signatureHeader string) error {
	verifier, err := s.providerFor(provider)
	if err != nil {
		return err
	}
	if err := verifier.VerifySignature(payload, signatureHeader); err != nil {
		return err
	}

	event, err := s.parse(provider, payload)
	if err != nil {
		return err
	}

	if event.key == "" {
		s.logInfo(ctx, fmt.Sprintf("ignoring unkeyed webhook type %s from %s", event.eventType, provider))
		return nil
	}

	row, err := s.events.FindByProviderEventID(ctx, provider, event.key)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if row != nil && row.Processed {
		s.logInfo(ctx, fmt.Sprintf("webhook %s/%s already processed", provider, event.key))
		return nil
	}
	if row == nil {
		row = &models.PaymentWebhookEvent{
			Provider:  provider,
			EventID:   event.key,
			EventType: event.eventType,
			Payload:   payload,
		}
		if err := s.events.Create(ctx, row); err != nil {
			// a concurrent delivery of the same event won the insert
			if dbpkg.IsUniqueViolation(err, "ux_webhook_events_provider_event") {
				return nil
			}
			return err
		}
	}

	if event.action == actionIgnore {
		s.logInfo(ctx, fmt.Sprintf("ignoring webhook type %s from %s", event.eventType, provider))
		return s.events.MarkProcessed(ctx, row.ID)
	}

	applyErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.apply(ctx, tx, provider, event); err != nil {
			return err
		}
		return s.events.WithTx(tx).MarkProcessed(ctx, row.ID)
	})
	if applyErr != nil {
		if markErr := s.events.MarkFailed(ctx, row.ID, applyErr.Error()); markErr != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to record webhook processing error", markErr)
		}
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("webhook %s/%s effect failed: %s", provider, event.key, applyErr))
		}
		return applyErr
	}
	return nil
}

func (s *Service) providerFor(provider enums.PaymentProvider) (providers.PaymentProvider, error) {
	switch provider {
	case enums.ProviderStripe:
		return s.stripe, nil
	case enums.ProviderRazorpay:
		return s.razorpay, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown webhook provider %q", provider))
	}
}

func (s *Service) parse(provider enums.PaymentProvider, payload []byte) (*inboundEvent, error) {
	if provider == enums.ProviderStripe {
		return parseStripeEvent(payload)
	}
	return parseRazorpayEvent(payload)
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, provider enums.PaymentProvider, event *inboundEvent) error {
	switch event.action {
	case actionCapture:
		_, err := s.payments.ApplyCaptureTx(ctx, tx, provider, event.intentID)
		return err
	case actionFail:
		_, err := s.payments.ApplyFailureTx(ctx, tx, provider, event.intentID)
		return err
	case actionRefund:
		_, err := s.payments.ApplyRefundTx(ctx, tx, provider, event.intentID)
		return err
	case actionPayoutUpdate:
		return s.applyPayoutUpdate(ctx, tx, event)
	default:
		return nil
	}
}

func (s *Service) applyPayoutUpdate(ctx context.Context, tx *gorm.DB, event *inboundEvent) error {
	if s.payouts == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "payout repo not configured")
	}
	repo := s.payouts.WithTx(tx)
	payout, err := repo.FindByProviderRef(ctx, event.payoutRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no payout for provider ref %s", event.payoutRef))
		}
		return err
	}
	if payout.Status == event.payoutStatus {
		return nil
	}

	payout.Status = event.payoutStatus
	if event.payoutStatus == enums.PayoutStatusFailed && event.failReason != "" {
		reason := event.failReason
		payout.FailureReason = &reason
	}
	if err := repo.Update(ctx, payout); err != nil {
		return err
	}

	if event.payoutStatus == enums.PayoutStatusFailed && s.outbox != nil {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
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
				FailureReason:  event.failReason,
			},
		})
	}
	return nil
}

func (s *Service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
