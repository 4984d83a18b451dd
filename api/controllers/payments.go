package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/api/middleware"
	"github.com/tradelane/marketpay-backend/api/responses"
	"github.com/tradelane/marketpay-backend/api/validators"
	"github.com/tradelane/marketpay-backend/internal/payments"
	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
	"github.com/tradelane/marketpay-backend/pkg/logger"
)

type payRequest struct {
	Currency string `json:"currency" validate:"required,len=3"`
}

type paymentResponse struct {
	PaymentID        uuid.UUID  `json:"payment_id"`
	OrderID          uuid.UUID  `json:"order_id"`
	Provider         string     `json:"provider"`
	Status           string     `json:"status"`
	Currency         string     `json:"currency"`
	AmountMinor      int64      `json:"amount_minor"`
	AmountInrPaise   int64      `json:"amount_inr_paise"`
	DisputeLocked    bool       `json:"dispute_locked"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`
	HoldingStartedAt *time.Time `json:"holding_started_at,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
}

type payResponse struct {
	Payment      paymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

func newPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:        p.ID,
		OrderID:          p.OrderID,
		Provider:         string(p.Provider),
		Status:           string(p.Status),
		Currency:         string(p.Currency),
		AmountMinor:      p.AmountMinor,
		AmountInrPaise:   p.AmountInrPaise,
		DisputeLocked:    p.DisputeLocked,
		CapturedAt:       p.CapturedAt,
		HoldingStartedAt: p.HoldingStartedAt,
		ReleasedAt:       p.ReleasedAt,
		RefundedAt:       p.RefundedAt,
	}
}

// PayOrder creates or retrieves the provider payment intent for an order.
func PayOrder(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}

		result, err := svc.CreateOrRetrieveIntent(r.Context(), orderID, buyerID, currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payResponse{
			Payment:      newPaymentResponse(result.Payment),
			ClientSecret: result.ClientSecret,
		})
	}
}

// GetOrderPayment returns the latest payment attached to the buyer's order.
func GetOrderPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetPaymentForOrder(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}
