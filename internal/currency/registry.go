package currency

import "github.com/tradelane/marketpay-backend/pkg/enums"

// minorUnitMultipliers maps a currency to the number of minor units per major
// unit. Unlisted currencies use two decimal places.
var minorUnitMultipliers = map[enums.Currency]int64{
	enums.CurrencyJPY: 1,
	enums.CurrencyBHD: 1000,
	enums.CurrencyKWD: 1000,
	enums.CurrencyOMR: 1000,
}

// MinorUnitMultiplier returns how many minor units make up one major unit of
// the currency (100 for INR paise, 1 for JPY, 1000 for KWD fils).
func MinorUnitMultiplier(c enums.Currency) int64 {
	if mult, ok := minorUnitMultipliers[c]; ok {
		return mult
	}
	return 100
}
