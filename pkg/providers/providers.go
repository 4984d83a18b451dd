// Package providers defines the contracts payment and payout provider
// integrations implement so the settlement core stays provider-agnostic.
package providers

import (
	"context"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// IntentParams describes a charge to initiate with a capture provider.
type IntentParams struct {
	OrderID     uuid.UUID
	AmountMinor int64
	Currency    enums.Currency
	Metadata    map[string]string
}

// Intent is the provider-side handle for a pending charge.
type Intent struct {
	ProviderIntentID string
	ClientSecret     string
}

// RefundParams describes a full or partial refund of a captured charge.
type RefundParams struct {
	ProviderIntentID string
	AmountMinor      int64
	Reason           string
}

// PaymentProvider is implemented by capture-side integrations (Stripe, Razorpay).
type PaymentProvider interface {
	Name() enums.PaymentProvider
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	RefundPayment(ctx context.Context, params RefundParams) (string, error)
	// VerifySignature authenticates a webhook delivery before any parsing.
	VerifySignature(payload []byte, signatureHeader string) error
}

// PayoutParams describes a seller payout to execute.
type PayoutParams struct {
	AccountRef     string
	NetAmountPaise int64
	Reference      string
	Narration      string
}

// PayoutResult is the provider-side outcome of a payout request.
type PayoutResult struct {
	ProviderPayoutRef string
	Status            enums.PayoutStatus
}

// PayoutProvider is implemented by payout-side integrations (RazorpayX).
type PayoutProvider interface {
	CreatePayout(ctx context.Context, params PayoutParams) (*PayoutResult, error)
}
