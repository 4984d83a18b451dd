package webhooks

import (
	"encoding/json"
	"fmt"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

const (
	razorpayPaymentCaptured = "payment.captured"
	razorpayPaymentFailed   = "payment.failed"
	razorpayRefundProcessed = "refund.processed"
	razorpayPayoutProcessed = "payout.processed"
	razorpayPayoutReversed  = "payout.reversed"
	razorpayPayoutFailed    = "payout.failed"
)

type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
		Payout struct {
			Entity struct {
				ID            string `json:"id"`
				Status        string `json:"status"`
				FailureReason string `json:"failure_reason"`
			} `json:"entity"`
		} `json:"payout"`
	} `json:"payload"`
}

// parseRazorpayEvent normalizes a Razorpay delivery. Razorpay payloads carry
// no event id, so the dedup key is a composite of the entity, its id, and the
// event name.
func parseRazorpayEvent(payload []byte) (*inboundEvent, error) {
	var envelope razorpayEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed razorpay webhook payload")
	}
	if envelope.Event == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay webhook missing event name")
	}

	event := &inboundEvent{
		eventType: envelope.Event,
		action:    actionIgnore,
	}

	switch envelope.Event {
	case razorpayPaymentCaptured:
		payment := envelope.Payload.Payment.Entity
		if payment.ID == "" || payment.OrderID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay payment webhook missing entity ids")
		}
		event.key = fmt.Sprintf("payment:%s:%s", payment.ID, envelope.Event)
		event.action = actionCapture
		event.intentID = payment.OrderID

	case razorpayPaymentFailed:
		payment := envelope.Payload.Payment.Entity
		if payment.ID == "" || payment.OrderID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay payment webhook missing entity ids")
		}
		event.key = fmt.Sprintf("payment:%s:%s", payment.ID, envelope.Event)
		event.action = actionFail
		event.intentID = payment.OrderID
		event.failReason = payment.ErrorDescription

	case razorpayRefundProcessed:
		refund := envelope.Payload.Refund.Entity
		payment := envelope.Payload.Payment.Entity
		if refund.ID == "" || payment.OrderID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay refund webhook missing entity ids")
		}
		event.key = fmt.Sprintf("refund:%s:%s", refund.ID, envelope.Event)
		event.action = actionRefund
		event.intentID = payment.OrderID

	case razorpayPayoutProcessed, razorpayPayoutReversed, razorpayPayoutFailed:
		payout := envelope.Payload.Payout.Entity
		if payout.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay payout webhook missing payout id")
		}
		event.key = fmt.Sprintf("payout:%s:%s", payout.ID, payout.Status)
		event.action = actionPayoutUpdate
		event.payoutRef = payout.ID
		event.failReason = payout.FailureReason
		if envelope.Event == razorpayPayoutProcessed {
			event.payoutStatus = enums.PayoutStatusSettled
		} else {
			event.payoutStatus = enums.PayoutStatusFailed
		}

	default:
		// no stable entity to key on; leave the key empty so the event is
		// logged and dropped without an audit row
	}

	return event, nil
}
