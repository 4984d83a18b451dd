package payments

import (
	"testing"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

func TestValidateTransitionFullMatrix(t *testing.T) {
	statuses := []enums.PaymentStatus{
		enums.PaymentStatusCreated,
		enums.PaymentStatusCaptured,
		enums.PaymentStatusHolding,
		enums.PaymentStatusReleased,
		enums.PaymentStatusRefunded,
		enums.PaymentStatusFailed,
	}

	allowed := map[enums.PaymentStatus]map[enums.PaymentStatus]bool{
		enums.PaymentStatusCreated: {
			enums.PaymentStatusCaptured: true,
			enums.PaymentStatusFailed:   true,
		},
		enums.PaymentStatusCaptured: {
			enums.PaymentStatusHolding: true,
			enums.PaymentStatusFailed:  true,
		},
		enums.PaymentStatusHolding: {
			enums.PaymentStatusReleased: true,
			enums.PaymentStatusRefunded: true,
			enums.PaymentStatusFailed:   true,
		},
		enums.PaymentStatusReleased: {},
		enums.PaymentStatusRefunded: {},
		enums.PaymentStatusFailed: {
			enums.PaymentStatusCreated: true,
		},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			err := ValidateTransition(from, to)
			if allowed[from][to] {
				if err != nil {
					t.Errorf("expected %s -> %s to be legal, got %v", from, to, err)
				}
				continue
			}
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				t.Errorf("expected %s -> %s to fail with state conflict, got %v", from, to, err)
			}
		}
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	err := ValidateTransition(enums.PaymentStatus("bogus"), enums.PaymentStatusCaptured)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
