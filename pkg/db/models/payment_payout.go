package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// PaymentPayout records one seller payout attempt for a payment. At most one
// non-failed payout may exist per payment; a failed attempt can be superseded.
type PaymentPayout struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID         uuid.UUID          `gorm:"column:payment_id;type:uuid;not null"`
	SellerID          uuid.UUID          `gorm:"column:seller_id;type:uuid;not null"`
	GrossAmountPaise  int64              `gorm:"column:gross_amount_paise;not null"`
	CommissionPaise   int64              `gorm:"column:commission_paise;not null"`
	NetAmountPaise    int64              `gorm:"column:net_amount_paise;not null"`
	RateMicros        int64              `gorm:"column:rate_micros;not null;default:1000000"`
	Status            enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'created'"`
	ProviderPayoutRef *string            `gorm:"column:provider_payout_ref"`
	FailureReason     *string            `gorm:"column:failure_reason"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
