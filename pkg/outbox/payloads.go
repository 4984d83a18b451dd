package outbox

import (
	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// PaymentEventData is the event body for payment.* lifecycle events.
type PaymentEventData struct {
	PaymentID      uuid.UUID           `json:"paymentId"`
	OrderID        uuid.UUID           `json:"orderId"`
	Provider       string              `json:"provider"`
	Status         enums.PaymentStatus `json:"status"`
	Currency       enums.Currency      `json:"currency"`
	AmountMinor    int64               `json:"amountMinor"`
	AmountInrPaise int64               `json:"amountInrPaise"`
}

// PayoutEventData is the event body for payout.* lifecycle events.
type PayoutEventData struct {
	PayoutID       uuid.UUID          `json:"payoutId"`
	PaymentID      uuid.UUID          `json:"paymentId"`
	SellerID       uuid.UUID          `json:"sellerId"`
	NetAmountPaise int64              `json:"netAmountPaise"`
	Status         enums.PayoutStatus `json:"status"`
	FailureReason  string             `json:"failureReason,omitempty"`
}
