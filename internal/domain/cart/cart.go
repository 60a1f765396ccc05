// Package cart implements the cart engine: lines keyed by product and chosen
// price, frozen unit prices and exact totals.
package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/money"
)

var (
	// ErrNotFound is returned when a line id does not exist.
	ErrNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity is matched by every *InvalidQuantityError.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// InvalidQuantityError reports a quantity or quantity change the line's price
// kind cannot accept.
type InvalidQuantityError struct {
	Quantity decimal.Decimal
	Reason   string
}

func (e *InvalidQuantityError) Error() string {
	return "invalid quantity " + e.Quantity.String() + ": " + e.Reason
}

// Is makes every InvalidQuantityError match ErrInvalidQuantity.
func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

// WeightPlaces is the precision of per-weight quantities.
const WeightPlaces = 2

// LineID identifies a cart line.
type LineID string

// Key is the identity of a line: adding the same key twice merges.
type Key struct {
	ProductID product.ID
	Selection product.Selection
}

// Line is one entry of the cart. UnitPrice is frozen when the line is
// created. Quantity counts packages or units, or weighs in Selection.Unit for
// per-weight lines.
type Line struct {
	ID        LineID
	ProductID product.ID
	Name      string
	Selection product.Selection
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// Key returns the line's identity.
func (l Line) Key() Key {
	return Key{ProductID: l.ProductID, Selection: l.Selection}
}

// Total returns UnitPrice × Quantity at full precision. Use money.Display to
// round it for presentation.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

// WeightIn converts a per-weight line's quantity to unit u. It reports false
// for lines that are not priced by weight.
func (l Line) WeightIn(u product.WeightUnit) (decimal.Decimal, bool) {
	if l.Selection.Kind != product.KindPerWeight {
		return decimal.Zero, false
	}
	return l.Selection.Unit.Convert(l.Quantity, u), true
}

// QuantityUnit returns the label shown next to the quantity.
func (l Line) QuantityUnit() string {
	switch l.Selection.Kind {
	case product.KindPackage:
		return "packages"
	case product.KindPerUnit:
		return "units"
	case product.KindPerWeight:
		return l.Selection.Unit.Symbol()
	default:
		return ""
	}
}

// Equal reports whether two lines are identical.
func (l Line) Equal(o Line) bool {
	return l.ID == o.ID &&
		l.ProductID == o.ProductID &&
		l.Name == o.Name &&
		l.Selection == o.Selection &&
		l.UnitPrice.Equal(o.UnitPrice) &&
		l.Quantity.Equal(o.Quantity)
}

// checkQuantity validates an absolute quantity for the price kind.
func checkQuantity(kind product.Kind, q decimal.Decimal) error {
	if !q.IsPositive() {
		return &InvalidQuantityError{Quantity: q, Reason: "must be greater than 0"}
	}
	return checkPrecision(kind, q)
}

// checkDelta validates a quantity change for the price kind.
func checkDelta(kind product.Kind, delta decimal.Decimal) error {
	if delta.IsZero() {
		return &InvalidQuantityError{Quantity: delta, Reason: "change must not be zero"}
	}
	return checkPrecision(kind, delta)
}

func checkPrecision(kind product.Kind, q decimal.Decimal) error {
	switch kind {
	case product.KindPackage, product.KindPerUnit:
		if !money.IsWhole(q) {
			return &InvalidQuantityError{Quantity: q, Reason: "must be a whole number"}
		}
	case product.KindPerWeight:
		if !money.HasPlaces(q, WeightPlaces) {
			return &InvalidQuantityError{Quantity: q, Reason: "must have at most 2 decimals"}
		}
	default:
		return &InvalidQuantityError{Quantity: q, Reason: "unknown price kind"}
	}
	return nil
}
