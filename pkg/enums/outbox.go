package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePayment OutboxAggregateType = "payment"
	AggregatePayout  OutboxAggregateType = "payment_payout"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregatePayout,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentCaptured OutboxEventType = "payment_captured"
	EventPaymentReleased OutboxEventType = "payment_released"
	EventPaymentRefunded OutboxEventType = "payment_refunded"
	EventPaymentFailed   OutboxEventType = "payment_failed"
	EventPayoutFailed    OutboxEventType = "payout_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentCaptured,
	EventPaymentReleased,
	EventPaymentRefunded,
	EventPaymentFailed,
	EventPayoutFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
