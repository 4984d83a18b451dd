package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/tradelane/marketpay-backend/api/responses"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

// IngestService verifies, dedups, and applies a provider webhook delivery.
type IngestService interface {
	Handle(ctx context.Context, provider enums.PaymentProvider, payload []byte, signatureHeader string) error
}

const stripeSignatureHeader = "Stripe-Signature"

// StripeWebhook handles payment intent and refund events from Stripe. A
// non-2xx response makes Stripe redeliver, which is how failed events retry.
func StripeWebhook(svc IngestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(stripeSignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}

		if err := svc.Handle(ctx, enums.ProviderStripe, payload, sigHeader); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
