package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// Order is the settlement core's view of an order. The order subsystem owns
// the rest of the row; we read status/totals and advance status on payment
// and payout milestones.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID    uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID   uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	Status     enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	TotalPaise int64             `gorm:"column:total_paise;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	CurrencySnapshot *OrderCurrencySnapshot `gorm:"foreignKey:OrderID"`
}
