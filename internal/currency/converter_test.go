package currency

import (
	"testing"

	"github.com/tradelane/marketpay-backend/pkg/enums"
	pkgerrors "github.com/tradelane/marketpay-backend/pkg/errors"
)

func TestConvertPaise(t *testing.T) {
	cases := []struct {
		name       string
		paise      int64
		rateMicros int64
		target     enums.Currency
		want       int64
	}{
		{
			// ₹199.99 at 0.011950 USD/INR is $2.38988, so 239 cents
			name:       "inr to usd cents",
			paise:      19999,
			rateMicros: 11950,
			target:     enums.CurrencyUSD,
			want:       239,
		},
		{
			// JPY has no minor unit, result is whole yen
			name:       "inr to jpy whole units",
			paise:      19999,
			rateMicros: 1_800_000,
			target:     enums.CurrencyJPY,
			want:       360,
		},
		{
			// KWD uses three decimal places
			name:       "inr to kwd fils",
			paise:      19999,
			rateMicros: 3670,
			target:     enums.CurrencyKWD,
			want:       734,
		},
		{
			name:       "inr passthrough",
			paise:      19999,
			rateMicros: 11950,
			target:     enums.CurrencyINR,
			want:       19999,
		},
		{
			// exactly 0.5 minor units rounds up
			name:       "half rounds away from zero",
			paise:      1,
			rateMicros: 500_000,
			target:     enums.CurrencyUSD,
			want:       1,
		},
		{
			name:       "just below half rounds down",
			paise:      100,
			rateMicros: 14_950,
			target:     enums.CurrencyUSD,
			want:       1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConvertPaise(tc.paise, tc.rateMicros, tc.target)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestConvertPaiseValidation(t *testing.T) {
	cases := []struct {
		name       string
		paise      int64
		rateMicros int64
		target     enums.Currency
	}{
		{name: "zero amount", paise: 0, rateMicros: 11950, target: enums.CurrencyUSD},
		{name: "negative amount", paise: -100, rateMicros: 11950, target: enums.CurrencyUSD},
		{name: "zero rate", paise: 100, rateMicros: 0, target: enums.CurrencyUSD},
		{name: "unknown currency", paise: 100, rateMicros: 11950, target: enums.Currency("XYZ")},
		{name: "rounds to zero", paise: 1, rateMicros: 1, target: enums.CurrencyUSD},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ConvertPaise(tc.paise, tc.rateMicros, tc.target)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestMinorUnitMultiplier(t *testing.T) {
	cases := map[enums.Currency]int64{
		enums.CurrencyINR: 100,
		enums.CurrencyUSD: 100,
		enums.CurrencyJPY: 1,
		enums.CurrencyBHD: 1000,
		enums.CurrencyKWD: 1000,
		enums.CurrencyOMR: 1000,
	}
	for c, want := range cases {
		if got := MinorUnitMultiplier(c); got != want {
			t.Errorf("MinorUnitMultiplier(%s) = %d, want %d", c, got, want)
		}
	}
}
