package webhooks

import (
	"encoding/json"

	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

const (
	stripeIntentSucceeded = "payment_intent.succeeded"
	stripeIntentFailed    = "payment_intent.payment_failed"
	stripeChargeRefunded  = "charge.refunded"
)

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

// parseStripeEvent normalizes a Stripe event. Stripe assigns every delivery a
// stable event id, which becomes the dedup key directly.
func parseStripeEvent(payload []byte) (*inboundEvent, error) {
	var envelope stripeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed stripe webhook payload")
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe webhook missing event id or type")
	}

	event := &inboundEvent{
		key:       envelope.ID,
		eventType: envelope.Type,
		action:    actionIgnore,
	}

	switch envelope.Type {
	case stripeIntentSucceeded:
		event.action = actionCapture
		event.intentID = envelope.Data.Object.ID
	case stripeIntentFailed:
		event.action = actionFail
		event.intentID = envelope.Data.Object.ID
	case stripeChargeRefunded:
		// the refunded object is a charge; the intent lives on its reference
		event.action = actionRefund
		event.intentID = envelope.Data.Object.PaymentIntent
	}

	if event.action != actionIgnore && event.intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe webhook missing payment intent reference")
	}
	return event, nil
}
