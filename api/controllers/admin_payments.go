package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/api/responses"
	"github.com/tradelane/marketpay-backend/api/validators"
	"github.com/tradelane/marketpay-backend/internal/payouts"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

type payoutResponse struct {
	PayoutID          uuid.UUID `json:"payout_id"`
	PaymentID         uuid.UUID `json:"payment_id"`
	SellerID          uuid.UUID `json:"seller_id"`
	GrossAmountPaise  int64     `json:"gross_amount_paise"`
	CommissionPaise   int64     `json:"commission_paise"`
	NetAmountPaise    int64     `json:"net_amount_paise"`
	RateMicros        int64     `json:"rate_micros"`
	Status            string    `json:"status"`
	ProviderPayoutRef *string   `json:"provider_payout_ref,omitempty"`
	FailureReason     *string   `json:"failure_reason,omitempty"`
}

func newPayoutResponse(p *models.PaymentPayout) payoutResponse {
	return payoutResponse{
		PayoutID:          p.ID,
		PaymentID:         p.PaymentID,
		SellerID:          p.SellerID,
		GrossAmountPaise:  p.GrossAmountPaise,
		CommissionPaise:   p.CommissionPaise,
		NetAmountPaise:    p.NetAmountPaise,
		RateMicros:        p.RateMicros,
		Status:            string(p.Status),
		ProviderPayoutRef: p.ProviderPayoutRef,
		FailureReason:     p.FailureReason,
	}
}

// AdminReleasePayment forces escrow release for a payment, bypassing the
// delivery check but never the dispute lock.
func AdminReleasePayment(engine *payouts.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout engine unavailable"))
			return
		}

		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := engine.Release(r.Context(), paymentID, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPayoutResponse(payout))
	}
}

// AdminHoldPayment pins a payment in escrow until an operator intervenes.
func AdminHoldPayment(engine *payouts.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout engine unavailable"))
			return
		}

		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := engine.AdminHold(r.Context(), paymentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "held"})
	}
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AdminRefundPayment refunds the buyer through the capture provider and
// closes out the escrow hold.
func AdminRefundPayment(engine *payouts.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout engine unavailable"))
			return
		}

		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := engine.AdminRefund(r.Context(), paymentID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}
