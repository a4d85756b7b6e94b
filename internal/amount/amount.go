// Package amount converts between decimal strings and fixed-point integer
// amounts, and carries the basis-point and checked arithmetic helpers used by
// the pricing code.
package amount

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"ammQuote/internal/ammerr"
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// DefaultDisplayDecimals is the most fraction digits Format keeps by default.
const DefaultDisplayDecimals = 4

var (
	amountPattern = regexp.MustCompile(`^([+-]?)([0-9]+)(?:\.([0-9]+))?$`)
	bpsDen        = big.NewInt(BpsDenominator)
)

// Parse converts a decimal string into an integer scaled by 10^decimals.
// Excess fraction digits are truncated, missing ones are zero padded.
func Parse(value string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, ammerr.Validation("parse amount", "decimals must be non-negative, got %d", decimals)
	}
	match := amountPattern.FindStringSubmatch(value)
	if match == nil {
		return nil, ammerr.Validation("parse amount", "invalid amount %q", value)
	}
	sign, whole, frac := match[1], match[2], match[3]

	if len(frac) > decimals {
		frac = frac[:decimals]
	} else {
		frac += strings.Repeat("0", decimals-len(frac))
	}

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, ammerr.Validation("parse amount", "invalid amount %q", value)
	}
	if sign == "-" {
		out.Neg(out)
	}
	return out, nil
}

// Format renders amount with min(decimals, displayDecimals) fraction digits,
// truncating (never rounding) anything beyond. Whole-unit tokens render
// without a decimal point.
func Format(amount *big.Int, decimals, displayDecimals int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	if decimals < 0 {
		decimals = 0
	}
	if displayDecimals < 0 {
		displayDecimals = 0
	}
	digits := int32(min(decimals, displayDecimals))
	d := decimal.NewFromBigInt(amount, -int32(decimals))
	return d.Truncate(digits).StringFixed(digits)
}

// FormatDefault is Format with DefaultDisplayDecimals.
func FormatDefault(amount *big.Int, decimals int) string {
	return Format(amount, decimals, DefaultDisplayDecimals)
}

// ToBps returns floor(numerator*10000/denominator), or 0 when the denominator
// is zero.
func ToBps(numerator, denominator *big.Int) *big.Int {
	if denominator == nil || denominator.Sign() == 0 || numerator == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(numerator, bpsDen)
	return floorDiv(out, out, denominator)
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount *big.Int, bps uint32) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return floorDiv(out, out, bpsDen)
}

// SafeMultiply returns a*b, failing when the product does not divide back to
// b. Arbitrary-precision products never wrap; the check keeps the contract
// identical to fixed-width backends.
func SafeMultiply(a, b *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(a, b)
	if a.Sign() != 0 {
		if new(big.Int).Quo(product, a).Cmp(b) != 0 {
			return nil, ammerr.Overflow("safe multiply", "%s * %s overflows", a, b)
		}
	}
	return product, nil
}

// SafeDivide returns a/b truncated toward zero.
func SafeDivide(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ammerr.DivisionByZero("safe divide").With("dividend", a.String())
	}
	return new(big.Int).Quo(a, b), nil
}

// floorDiv sets dst = floor(x/y) for any signs.
func floorDiv(dst, x, y *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(x, y, new(big.Int))
	if m.Sign() != 0 && (m.Sign() < 0) != (y.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return dst.Set(q)
}
