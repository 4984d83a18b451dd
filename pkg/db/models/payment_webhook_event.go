package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// PaymentWebhookEvent is the append-only log of provider notifications.
// (provider, event_id) is unique so redelivery can never apply an effect twice.
type PaymentWebhookEvent struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider        enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null;uniqueIndex:ux_webhook_events_provider_event"`
	EventID         string                `gorm:"column:event_id;not null;uniqueIndex:ux_webhook_events_provider_event"`
	EventType       string                `gorm:"column:event_type;not null"`
	Payload         json.RawMessage       `gorm:"column:payload;type:jsonb;not null"`
	Processed       bool                  `gorm:"column:processed;not null;default:false"`
	ProcessingError *string               `gorm:"column:processing_error"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
