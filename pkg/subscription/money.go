package subscription

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// minorScale returns the number of minor-unit digits for an ISO 4217 code,
// defaulting to 2 for unknown codes.
func minorScale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// ToMinor converts a major-unit amount (10.99) into minor units (1099).
func ToMinor(amount decimal.Decimal, code string) int64 {
	return amount.Shift(minorScale(code)).Round(0).IntPart()
}

// FromMinor converts minor units (1099) into a major-unit amount (10.99).
func FromMinor(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -minorScale(code))
}

// ValidCurrency reports whether code is a known ISO 4217 currency.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}
