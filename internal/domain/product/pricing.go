package product

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-kart/internal/money"
)

// KilosPerPound is the fixed conversion factor between the two weight units.
var KilosPerPound = decimal.RequireFromString("0.453592")

// Kind names a way of pricing a product.
type Kind uint8

// Price kinds.
const (
	KindPackage Kind = iota + 1
	KindPerUnit
	KindPerWeight
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindPerUnit:
		return "per_unit"
	case KindPerWeight:
		return "per_weight"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind reads a Kind from its String form.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "package":
		return KindPackage, nil
	case "per_unit", "unit":
		return KindPerUnit, nil
	case "per_weight", "weight":
		return KindPerWeight, nil
	default:
		return 0, errors.Errorf("unknown price kind %q", s)
	}
}

// WeightUnit is the unit a per-weight price and quantity are expressed in.
// The zero value means no unit and is only valid for non-weight kinds.
type WeightUnit uint8

// Weight units.
const (
	NoUnit WeightUnit = iota
	Pound
	Kilo
)

func (u WeightUnit) String() string {
	switch u {
	case NoUnit:
		return ""
	case Pound:
		return "pound"
	case Kilo:
		return "kilo"
	default:
		return "unit(" + strconv.Itoa(int(u)) + ")"
	}
}

// Symbol returns the short display form of u.
func (u WeightUnit) Symbol() string {
	switch u {
	case Pound:
		return "lb"
	case Kilo:
		return "kg"
	default:
		return ""
	}
}

// ParseWeightUnit reads a WeightUnit. The empty string yields NoUnit.
func ParseWeightUnit(s string) (WeightUnit, error) {
	switch s {
	case "":
		return NoUnit, nil
	case "pound", "lb":
		return Pound, nil
	case "kilo", "kg":
		return Kilo, nil
	default:
		return NoUnit, errors.Errorf("unknown weight unit %q", s)
	}
}

// Convert expresses a weight given in u in the target unit.
func (u WeightUnit) Convert(weight decimal.Decimal, target WeightUnit) decimal.Decimal {
	switch {
	case u == target:
		return weight
	case u == Pound && target == Kilo:
		return weight.Mul(KilosPerPound)
	case u == Kilo && target == Pound:
		return weight.Div(KilosPerPound)
	default:
		return weight
	}
}

// Selection is the price a shopper picked: a kind plus, for per-weight
// pricing, the unit.
type Selection struct {
	Kind Kind
	Unit WeightUnit
}

// Selection selects the package price.
func (Package) Selection() Selection { return Selection{Kind: KindPackage} }

// Selection selects the per-unit price.
func (PerUnit) Selection() Selection { return Selection{Kind: KindPerUnit} }

// ByWeight selects the per-weight price in the given unit.
func ByWeight(u WeightUnit) Selection {
	return Selection{Kind: KindPerWeight, Unit: u}
}

func (s Selection) String() string {
	if s.Kind == KindPerWeight {
		return s.Kind.String() + "/" + s.Unit.String()
	}
	return s.Kind.String()
}

// Representation is one independent way of pricing a product. The set of
// implementations is closed: Package, PerUnit and PerWeight.
type Representation interface {
	Kind() Kind
	Label() string
	sealed()
}

// Package prices a whole package.
type Package struct {
	Price     decimal.Decimal `validate:"dgt0"`
	UnitLabel string          `validate:"required,max=60"`
}

// PerUnit prices a single item taken out of a package. UnitsPerPackage is
// informational and does not affect the price.
type PerUnit struct {
	Price           decimal.Decimal `validate:"dgt0"`
	UnitsPerPackage int             `validate:"gt=0"`
}

// PerWeight prices by weight. At least one of the two prices is set; the
// other is derived through KilosPerPound.
type PerWeight struct {
	Pound decimal.NullDecimal `validate:"omitempty,dgt0"`
	Kilo  decimal.NullDecimal `validate:"omitempty,dgt0"`
}

func (Package) Kind() Kind   { return KindPackage }
func (PerUnit) Kind() Kind   { return KindPerUnit }
func (PerWeight) Kind() Kind { return KindPerWeight }

func (Package) sealed()   {}
func (PerUnit) sealed()   {}
func (PerWeight) sealed() {}

// Label describes the package price, e.g. "Package: $1.50 per paquete".
func (p Package) Label() string {
	return "Package: $" + money.Format(p.Price) + " per " + p.UnitLabel
}

// Label describes the unit price, e.g. "Unit: $0.50 each (3 per package)".
func (p PerUnit) Label() string {
	return "Unit: $" + money.Format(p.Price) + " each (" + strconv.Itoa(p.UnitsPerPackage) + " per package)"
}

// Label describes both weight prices, e.g. "Weight: $1.00 per lb ($2.20 per kg)".
func (p PerWeight) Label() string {
	return "Weight: $" + money.Format(p.PerPound()) + " per lb ($" + money.Format(p.PerKilo()) + " per kg)"
}

// PoundPrice returns a PerWeight priced by the pound only.
func PoundPrice(price decimal.Decimal) PerWeight {
	return PerWeight{Pound: decimal.NewNullDecimal(price)}
}

// KiloPrice returns a PerWeight priced by the kilo only.
func KiloPrice(price decimal.Decimal) PerWeight {
	return PerWeight{Kilo: decimal.NewNullDecimal(price)}
}

// PerPound returns the price of one pound, derived from the kilo price when
// only that one was entered.
func (p PerWeight) PerPound() decimal.Decimal {
	if p.Pound.Valid {
		return p.Pound.Decimal
	}
	return p.Kilo.Decimal.Mul(KilosPerPound)
}

// PerKilo returns the price of one kilo, derived from the pound price when
// only that one was entered.
func (p PerWeight) PerKilo() decimal.Decimal {
	if p.Kilo.Valid {
		return p.Kilo.Decimal
	}
	return p.Pound.Decimal.Div(KilosPerPound)
}

// Price returns the per-weight price in unit u.
func (p PerWeight) Price(u WeightUnit) (decimal.Decimal, bool) {
	switch u {
	case Pound:
		return p.PerPound(), true
	case Kilo:
		return p.PerKilo(), true
	default:
		return decimal.Zero, false
	}
}

// consistent reports whether entered pound and kilo prices agree to the cent.
func (p PerWeight) consistent() bool {
	if !p.Pound.Valid || !p.Kilo.Valid {
		return true
	}
	derived := money.Display(p.Pound.Decimal.Div(KilosPerPound))
	diff := derived.Sub(money.Display(p.Kilo.Decimal)).Abs()
	return diff.LessThanOrEqual(decimal.New(1, -money.DisplayPlaces))
}

// ResolveUnitPrice returns the price the product charges for one unit of the
// selection. It fails with ErrRepresentationUnavailable when the product has
// no such representation or the weight unit is missing.
func ResolveUnitPrice(p Product, sel Selection) (decimal.Decimal, error) {
	unavailable := &UnavailableError{ProductID: p.ID, Selection: sel}

	r, ok := p.Representation(sel.Kind)
	if !ok {
		return decimal.Zero, unavailable
	}
	switch r := r.(type) {
	case Package:
		if sel.Unit != NoUnit {
			return decimal.Zero, unavailable
		}
		return r.Price, nil
	case PerUnit:
		if sel.Unit != NoUnit {
			return decimal.Zero, unavailable
		}
		return r.Price, nil
	case PerWeight:
		price, ok := r.Price(sel.Unit)
		if !ok {
			return decimal.Zero, unavailable
		}
		return price, nil
	default:
		return decimal.Zero, unavailable
	}
}

// CountAvailable returns how many representations the product offers. The
// presentation layer adds directly when it is one and asks otherwise.
func CountAvailable(p Product) int {
	return len(p.Representations)
}

// Option is one concrete choice offered to the shopper.
type Option struct {
	Selection Selection
	UnitPrice decimal.Decimal
	Label     string
}

// Options flattens the product's representations into selectable choices in
// canonical order. A per-weight representation yields a pound and a kilo
// choice.
func Options(p Product) []Option {
	var out []Option
	for _, r := range p.Representations {
		switch r := r.(type) {
		case Package:
			out = append(out, Option{Selection: r.Selection(), UnitPrice: r.Price, Label: r.Label()})
		case PerUnit:
			out = append(out, Option{Selection: r.Selection(), UnitPrice: r.Price, Label: r.Label()})
		case PerWeight:
			out = append(out,
				Option{Selection: ByWeight(Pound), UnitPrice: r.PerPound(), Label: "Weight: $" + money.Format(r.PerPound()) + " per lb"},
				Option{Selection: ByWeight(Kilo), UnitPrice: r.PerKilo(), Label: "Weight: $" + money.Format(r.PerKilo()) + " per kg"},
			)
		}
	}
	return out
}

func equalRepresentation(a, b Representation) bool {
	switch a := a.(type) {
	case Package:
		b, ok := b.(Package)
		return ok && a.Price.Equal(b.Price) && a.UnitLabel == b.UnitLabel
	case PerUnit:
		b, ok := b.(PerUnit)
		return ok && a.Price.Equal(b.Price) && a.UnitsPerPackage == b.UnitsPerPackage
	case PerWeight:
		b, ok := b.(PerWeight)
		return ok && equalNull(a.Pound, b.Pound) && equalNull(a.Kilo, b.Kilo)
	default:
		return false
	}
}

func equalNull(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// canonicalOrder sorts representations package, per-unit, per-weight.
func canonicalOrder(reps []Representation) []Representation {
	out := make([]Representation, 0, len(reps))
	for _, k := range []Kind{KindPackage, KindPerUnit, KindPerWeight} {
		for _, r := range reps {
			if r.Kind() == k {
				out = append(out, r)
			}
		}
	}
	return out
}
