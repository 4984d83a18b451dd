package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// Payment tracks one buyer charge from provider capture through escrow to
// payout. At most one non-terminal payment exists per order.
type Payment struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	Provider         enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null"`
	ProviderIntentID *string               `gorm:"column:provider_intent_id"`
	Currency         enums.Currency        `gorm:"column:currency;not null;default:'INR'"`
	AmountMinor      int64                 `gorm:"column:amount_minor;not null"`
	AmountInrPaise   int64                 `gorm:"column:amount_inr_paise;not null"`
	Status           enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'created'"`
	DisputeLocked    bool                  `gorm:"column:dispute_locked;not null;default:false"`
	CapturedAt       *time.Time            `gorm:"column:captured_at"`
	HoldingStartedAt *time.Time            `gorm:"column:holding_started_at"`
	ReleasedAt       *time.Time            `gorm:"column:released_at"`
	RefundedAt       *time.Time            `gorm:"column:refunded_at"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Payouts []PaymentPayout `gorm:"foreignKey:PaymentID"`
}
