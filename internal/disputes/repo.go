// Package disputes exposes the dispute subsystem's predicate the payout
// engine consults before moving money.
package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/pkg/db/models"
)

// Reader is the read-only view the payout engine needs.
type Reader interface {
	HasUnresolvedDispute(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type Repository interface {
	Reader
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	Resolve(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a disputes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", id).
		Updates(map[string]any{"resolved": true, "resolved_at": now}).Error
}

func (r *repository) HasUnresolvedDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ? AND resolved = ?", orderID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
