package webhooks

import (
	"io"
	"net/http"

	"github.com/tradelane/marketpay-backend/api/responses"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// RazorpayWebhook handles payment, refund, and payout events from Razorpay.
func RazorpayWebhook(svc IngestService, logg *logger.Logger) http.HandlerFunc {
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

		sigHeader := r.Header.Get(razorpaySignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "razorpay signature missing"))
			return
		}

		if err := svc.Handle(ctx, enums.ProviderRazorpay, payload, sigHeader); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
