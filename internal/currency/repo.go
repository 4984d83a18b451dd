package currency

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/pkg/db/models"
)

// SnapshotRepository persists per-order currency snapshots.
type SnapshotRepository interface {
	WithTx(tx *gorm.DB) SnapshotRepository
	Create(ctx context.Context, snapshot *models.OrderCurrencySnapshot) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderCurrencySnapshot, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository builds a snapshot repository bound to the provided DB.
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) WithTx(tx *gorm.DB) SnapshotRepository {
	if tx == nil {
		return r
	}
	return &snapshotRepository{db: tx}
}

func (r *snapshotRepository) Create(ctx context.Context, snapshot *models.OrderCurrencySnapshot) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *snapshotRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderCurrencySnapshot, error) {
	var snapshot models.OrderCurrencySnapshot
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
