package payments

import (
	"fmt"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

// allowedTransitions is the full payment lifecycle. RELEASED and REFUNDED are
// terminal; FAILED retries back to CREATED on the same row.
var allowedTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusCreated:  {enums.PaymentStatusCaptured, enums.PaymentStatusFailed},
	enums.PaymentStatusCaptured: {enums.PaymentStatusHolding, enums.PaymentStatusFailed},
	enums.PaymentStatusHolding:  {enums.PaymentStatusReleased, enums.PaymentStatusRefunded, enums.PaymentStatusFailed},
	enums.PaymentStatusReleased: {},
	enums.PaymentStatusRefunded: {},
	enums.PaymentStatusFailed:   {enums.PaymentStatusCreated},
}

// ValidateTransition reports whether from→to is a legal lifecycle step. It is
// pure; callers persist the new status themselves after validation.
func ValidateTransition(from, to enums.PaymentStatus) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return pkgerrors.New(
		pkgerrors.CodeStateConflict,
		fmt.Sprintf("invalid payment transition %s -> %s", from, to),
	)
}
