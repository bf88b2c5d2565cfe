package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxPurposeLength is the longest purpose string the disbursement provider accepts.
const MaxPurposeLength = 30

var hundred = decimal.NewFromInt(100)

// ToCents converts a dollar amount to integer cents, rounding half away from zero.
func ToCents(dollars decimal.Decimal) int64 {
	return dollars.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer cents to dollars.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// TruncatePurpose cuts s to at most MaxPurposeLength characters. It never fails.
func TruncatePurpose(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxPurposeLength {
		return s
	}
	return string([]rune(s)[:MaxPurposeLength])
}

// FormatDollars renders an amount as "$12.34".
func FormatDollars(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
