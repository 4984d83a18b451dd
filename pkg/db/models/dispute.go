package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute is owned by the dispute subsystem; settlement only reads the
// resolved flag when deciding payout eligibility.
type Dispute struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	Reason     string     `gorm:"column:reason"`
	Resolved   bool       `gorm:"column:resolved;not null;default:false"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	ResolvedAt *time.Time `gorm:"column:resolved_at"`
}
