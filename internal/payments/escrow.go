package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

// LockFunds sets the dispute lock on the order's active payment. It is the
// only mutation the dispute subsystem may perform, and it is idempotent.
func (s *Service) LockFunds(ctx context.Context, orderID uuid.UUID) error {
	return s.setDisputeLock(ctx, orderID, true)
}

// UnlockFunds clears the dispute lock on the order's active payment.
func (s *Service) UnlockFunds(ctx context.Context, orderID uuid.UUID) error {
	return s.setDisputeLock(ctx, orderID, false)
}

func (s *Service) setDisputeLock(ctx context.Context, orderID uuid.UUID, locked bool) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindActiveByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no active payment for order")
			}
			return err
		}
		if payment.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled")
		}
		if payment.DisputeLocked == locked {
			return nil
		}

		payment.DisputeLocked = locked
		if err := repo.Update(ctx, payment); err != nil {
			return err
		}

		if s.logg != nil {
			logCtx := s.logg.WithPaymentID(s.logg.WithOrderID(ctx, orderID.String()), payment.ID.String())
			if locked {
				s.logg.Info(logCtx, "escrow dispute lock set")
			} else {
				s.logg.Info(logCtx, "escrow dispute lock cleared")
			}
		}
		return nil
	})
}
