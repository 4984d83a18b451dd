package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// SellerPayoutAccount holds the seller-onboarding subsystem's payout
// destination; payouts require Verified to be true.
type SellerPayoutAccount struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID   uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_payout_accounts_seller"`
	Provider   enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null"`
	AccountRef string                `gorm:"column:account_ref;not null"`
	Verified   bool                  `gorm:"column:verified;not null;default:false"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
