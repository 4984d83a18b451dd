package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/pkg/db/models"
	"github.com/tradelane/marketpay-backend/pkg/enums"
)

// Repository persists payout attempts. The partial unique index on
// payment_payouts keeps at most one non-failed row per payment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.PaymentPayout) error
	Update(ctx context.Context, payout *models.PaymentPayout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentPayout, error)
	FindActiveByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.PaymentPayout, error)
	FindByProviderRef(ctx context.Context, ref string) (*models.PaymentPayout, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentPayout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.PaymentPayout) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) Update(ctx context.Context, payout *models.PaymentPayout) error {
	return r.db.WithContext(ctx).Save(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentPayout, error) {
	var payout models.PaymentPayout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindActiveByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.PaymentPayout, error) {
	var payout models.PaymentPayout
	err := r.db.WithContext(ctx).
		Where("payment_id = ? AND status <> ?", paymentID, enums.PayoutStatusFailed).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByProviderRef(ctx context.Context, ref string) (*models.PaymentPayout, error) {
	var payout models.PaymentPayout
	err := r.db.WithContext(ctx).
		Where("provider_payout_ref = ?", ref).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentPayout, error) {
	var rows []models.PaymentPayout
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
