package currency

import (
	"github.com/shopspring/decimal"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

// RateScale is the fixed-point denominator for exchange rates: a rate of
// 0.011950 target units per INR is stored as 11950 micros.
const RateScale = 1_000_000

const inrMultiplier = 100

// ConvertPaise converts an INR amount in paise into the target currency's
// minor units using a micro-scaled rate, rounding half away from zero.
func ConvertPaise(amountPaise int64, rateMicros int64, target enums.Currency) (int64, error) {
	if amountPaise <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if rateMicros <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "exchange rate must be positive")
	}
	if !target.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	if target == enums.CurrencyINR {
		return amountPaise, nil
	}

	converted := decimal.NewFromInt(amountPaise).
		Mul(decimal.NewFromInt(rateMicros)).
		Mul(decimal.NewFromInt(MinorUnitMultiplier(target))).
		Div(decimal.NewFromInt(inrMultiplier * RateScale)).
		Round(0)

	minor := converted.IntPart()
	if minor <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "converted amount rounds to zero")
	}
	return minor, nil
}
