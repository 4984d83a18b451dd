package enums

import "fmt"

// Currency represents the monetary denominations the platform can charge in.
// INR is the settlement base; everything else is a buyer-facing charge currency.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyAED Currency = "AED"
	CurrencyAUD Currency = "AUD"
	CurrencyCAD Currency = "CAD"
	CurrencySGD Currency = "SGD"
	CurrencyJPY Currency = "JPY"
	CurrencyBHD Currency = "BHD"
	CurrencyKWD Currency = "KWD"
	CurrencyOMR Currency = "OMR"
)

var validCurrencies = []Currency{
	CurrencyINR,
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
	CurrencyAED,
	CurrencyAUD,
	CurrencyCAD,
	CurrencySGD,
	CurrencyJPY,
	CurrencyBHD,
	CurrencyKWD,
	CurrencyOMR,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
