package stripe

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/providers"
)

// Name identifies the provider for persistence and routing.
func (c *Client) Name() enums.PaymentProvider {
	return enums.ProviderStripe
}

// CreateIntent creates a Stripe PaymentIntent in the buyer's display currency.
func (c *Client) CreateIntent(ctx context.Context, params providers.IntentParams) (*providers.Intent, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	if params.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}

	intentParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(strings.ToLower(params.Currency.String())),
	}
	intentParams.Context = ctx
	intentParams.AddMetadata("order_id", params.OrderID.String())
	for key, value := range params.Metadata {
		intentParams.AddMetadata(key, value)
	}

	intent, err := paymentintent.New(intentParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe payment intent")
	}

	return &providers.Intent{
		ProviderIntentID: intent.ID,
		ClientSecret:     intent.ClientSecret,
	}, nil
}

// RefundPayment issues a refund against a captured PaymentIntent and returns
// the provider refund reference.
func (c *Client) RefundPayment(ctx context.Context, params providers.RefundParams) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	if strings.TrimSpace(params.ProviderIntentID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provider intent id is required")
	}

	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.ProviderIntentID),
	}
	refundParams.Context = ctx
	if params.AmountMinor > 0 {
		refundParams.Amount = stripe.Int64(params.AmountMinor)
	}
	if reason := strings.TrimSpace(params.Reason); reason != "" {
		refundParams.AddMetadata("reason", reason)
	}

	created, err := refund.New(refundParams)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe refund")
	}
	return created.ID, nil
}

// VerifySignature authenticates a webhook delivery against the signing secret.
func (c *Client) VerifySignature(payload []byte, signatureHeader string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe client not configured")
	}
	if _, err := webhook.ConstructEvent(payload, signatureHeader, c.signingSecret); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe webhook signature")
	}
	return nil
}
