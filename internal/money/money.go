// Package money holds the decimal conventions shared by the catalog and the
// cart: exact arithmetic, two-place display rounding and a scale-preserving
// JSON form.
package money

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of fractional digits shown to the operator.
const DisplayPlaces = 2

// Display rounds d half away from zero to cents for presentation. Stored and
// accumulated values are never rounded.
func Display(d decimal.Decimal) decimal.Decimal {
	return d.Round(DisplayPlaces)
}

// Format renders d rounded to cents, always with two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(DisplayPlaces)
}

// HasPlaces reports whether d needs no more than places fractional digits.
func HasPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// IsWhole reports whether d is an integer.
func IsWhole(d decimal.Decimal) bool {
	return HasPlaces(d, 0)
}

// Exact renders d so that parsing the result yields the same coefficient and
// exponent, keeping trailing zeros such as "1.50".
func Exact(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// Parse reads a decimal from its textual form.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", s)
	}
	return d, nil
}

// Encode writes d as a JSON string in its exact form.
func Encode(e *jx.Encoder, d decimal.Decimal) {
	e.Str(Exact(d))
}

// Decode reads a decimal written either as a JSON string or as a JSON number.
func Decode(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return Parse(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return Parse(n.String())
	default:
		return decimal.Zero, errors.Errorf("decimal: unexpected %s", d.Next())
	}
}
