// Package selleraccounts reads the seller-onboarding subsystem's payout
// destinations; payouts require a verified account.
package selleraccounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelane/marketpay-backend/pkg/db/models"
)

// Reader is the read-only view the payout engine needs.
type Reader interface {
	FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerPayoutAccount, error)
}

type Repository interface {
	Reader
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.SellerPayoutAccount) error
	SetVerified(ctx context.Context, sellerID uuid.UUID, verified bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a seller payout account repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.SellerPayoutAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) SetVerified(ctx context.Context, sellerID uuid.UUID, verified bool) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerPayoutAccount{}).
		Where("seller_id = ?", sellerID).
		Update("verified", verified).Error
}

func (r *repository) FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerPayoutAccount, error) {
	var account models.SellerPayoutAccount
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}
