// Package units converts between human-decimal strings and fixed-point token amounts.
//
// All amount arithmetic happens on *uint256.Int. Decimal strings only appear at the
// boundary: user input on the way in, display text on the way out.
package units

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DisplayFractionDigits caps the fractional digits shown to users
const DisplayFractionDigits = 6

var printer = message.NewPrinter(language.English)

// ToFixedPoint scales a human amount by 10^decimals.
// Empty, non-numeric, negative or out-of-range input yields zero; it never fails.
// Digits beyond the token precision are truncated.
func ToFixedPoint(human string, decimals uint8) *uint256.Int {
	d, ok := parseHuman(human)
	if !ok || d.Sign() <= 0 {
		return uint256.NewInt(0)
	}

	scaled := d.Shift(int32(decimals)).Truncate(0)
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return uint256.NewInt(0)
	}
	return v
}

// ToHumanString renders an amount with grouped digits and at most six fractional
// digits, truncated. Display only: it does not round-trip for finer amounts.
func ToHumanString(v *uint256.Int, decimals uint8) string {
	if v == nil || v.IsZero() {
		return "0"
	}
	d := decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).Truncate(DisplayFractionDigits)
	return group(d)
}

// ToDecimalString renders the full-precision human amount without grouping
func ToDecimalString(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

// FormatRate renders numerator/denominator for display.
// It returns an empty string when either side is not numeric or the denominator is not positive.
func FormatRate(numerator, denominator string) string {
	n, ok := parseHuman(numerator)
	if !ok {
		return ""
	}
	d, ok := parseHuman(denominator)
	if !ok || d.Sign() <= 0 {
		return ""
	}
	return group(n.DivRound(d, 18).Truncate(DisplayFractionDigits))
}

// IsSubmittable reports whether human is a positive number a user may submit
func IsSubmittable(human string) bool {
	d, ok := parseHuman(human)
	return ok && d.Sign() > 0
}

func parseHuman(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func group(d decimal.Decimal) string {
	s := d.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		intPart = printer.Sprintf("%d", n)
	}

	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
