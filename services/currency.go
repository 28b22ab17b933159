package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"shop-service/apperrors"
)

// minorUnitExponents maps ISO 4217 currency codes to their minor-unit
// exponent. Codes absent from the table use the common two-decimal
// scale.
var minorUnitExponents = map[string]int32{
	"bhd": 3,
	"jod": 3,
	"jpy": 0,
	"krw": 0,
	"kwd": 3,
	"omr": 3,
	"vnd": 0,
}

// MinorUnits converts a decimal amount to the processor's integral
// minor-currency units for the given currency code.
func MinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	code := strings.ToLower(strings.TrimSpace(currency))
	if len(code) != 3 {
		return 0, apperrors.ErrUnsupportedCurrency
	}
	exp, ok := minorUnitExponents[code]
	if !ok {
		exp = 2
	}
	return amount.Shift(exp).Round(0).IntPart(), nil
}
