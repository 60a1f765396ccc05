package product

import (
	"strconv"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrValidationFailed is matched by every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")
	// ErrRepresentationUnavailable is returned when a product has no price
	// for the requested selection.
	ErrRepresentationUnavailable = errors.New("price representation unavailable")
)

// ID identifies a product. Ids are assigned by the Store from a monotonic
// counter and never reused.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID reads an ID from its decimal form.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.Errorf("invalid product id %q", s)
	}
	return ID(v), nil
}

// Category groups products in the storefront.
type Category string

// Supported categories.
const (
	CategoryChurros    Category = "churros"
	CategoryVegetables Category = "vegetables"
	CategoryBread      Category = "bread"
	CategorySweets     Category = "sweets"
	CategoryBeverages  Category = "beverages"
	CategoryCleaning   Category = "cleaning"
	CategoryOther      Category = "other"
)

// AnyCategory is the ListByCategory filter that matches every product. It is
// not a valid product category.
const AnyCategory Category = "all"

var categories = []Category{
	CategoryChurros,
	CategoryVegetables,
	CategoryBread,
	CategorySweets,
	CategoryBeverages,
	CategoryCleaning,
	CategoryOther,
}

// AllCategories returns the fixed set of product categories.
func AllCategories() []Category {
	return append([]Category(nil), categories...)
}

// Valid reports whether c is one of the fixed product categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryChurros, CategoryVegetables, CategoryBread, CategorySweets,
		CategoryBeverages, CategoryCleaning, CategoryOther:
		return true
	default:
		return false
	}
}

// Product is a catalog item priced by one or more representations.
type Product struct {
	ID              ID
	Name            string
	Category        Category
	Representations []Representation
}

// Representation returns the product's representation of the given kind.
func (p Product) Representation(kind Kind) (Representation, bool) {
	for _, r := range p.Representations {
		if r.Kind() == kind {
			return r, true
		}
	}
	return nil, false
}

// Equal reports whether two products carry the same id, fields and prices.
func (p Product) Equal(o Product) bool {
	if p.ID != o.ID || p.Name != o.Name || p.Category != o.Category {
		return false
	}
	if len(p.Representations) != len(o.Representations) {
		return false
	}
	for i := range p.Representations {
		if !equalRepresentation(p.Representations[i], o.Representations[i]) {
			return false
		}
	}
	return true
}

// Draft is operator input for creating or editing a product.
type Draft struct {
	Name            string   `validate:"required,max=120"`
	Category        Category `validate:"required,category"`
	Representations []Representation
}

// ValidationError describes the first invalid field of a Draft.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Is makes every ValidationError match ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// UnavailableError reports a selection that the product cannot price.
type UnavailableError struct {
	ProductID ID
	Selection Selection
}

func (e *UnavailableError) Error() string {
	return "product " + e.ProductID.String() + ": no " + e.Selection.String() + " price"
}

// Is makes every UnavailableError match ErrRepresentationUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrRepresentationUnavailable
}
