package product

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator with the decimal and
// category rules registered.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			return f.Interface().(decimal.Decimal).String()
		}, decimal.Decimal{})
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			nd := f.Interface().(decimal.NullDecimal)
			if !nd.Valid {
				return ""
			}
			return nd.Decimal.String()
		}, decimal.NullDecimal{})
		_ = v.RegisterValidation("dgt0", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && d.IsPositive()
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return Category(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate normalizes the draft and checks every field. The returned draft
// has a trimmed name and representations in canonical order.
func (d Draft) Validate() (Draft, error) {
	d.Name = strings.TrimSpace(d.Name)
	if err := validatorInstance().Struct(d); err != nil {
		return d, fromValidator(err, "")
	}

	if len(d.Representations) == 0 {
		return d, &ValidationError{Field: "representations", Reason: "at least one price is required"}
	}
	seen := make(map[Kind]bool, len(d.Representations))
	for _, r := range d.Representations {
		if r == nil {
			return d, &ValidationError{Field: "representations", Reason: "empty price"}
		}
		prefix := r.Kind().String()
		if seen[r.Kind()] {
			return d, &ValidationError{Field: prefix, Reason: "duplicate price kind"}
		}
		seen[r.Kind()] = true

		switch r := r.(type) {
		case Package:
			r.UnitLabel = strings.TrimSpace(r.UnitLabel)
			if err := validatorInstance().Struct(r); err != nil {
				return d, fromValidator(err, prefix)
			}
		case PerUnit:
			if err := validatorInstance().Struct(r); err != nil {
				return d, fromValidator(err, prefix)
			}
		case PerWeight:
			if !r.Pound.Valid && !r.Kilo.Valid {
				return d, &ValidationError{Field: prefix, Reason: "a pound or kilo price is required"}
			}
			if err := validatorInstance().Struct(r); err != nil {
				return d, fromValidator(err, prefix)
			}
			if !r.consistent() {
				return d, &ValidationError{Field: prefix, Reason: "pound and kilo prices disagree"}
			}
		}
	}

	d.Representations = canonicalOrder(trimLabels(d.Representations))
	return d, nil
}

func trimLabels(reps []Representation) []Representation {
	out := make([]Representation, len(reps))
	for i, r := range reps {
		if p, ok := r.(Package); ok {
			p.UnitLabel = strings.TrimSpace(p.UnitLabel)
			r = p
		}
		out[i] = r
	}
	return out
}

// fromValidator converts the first validator failure to a ValidationError.
func fromValidator(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: prefix, Reason: err.Error()}
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	if prefix != "" {
		field = prefix + "." + field
	}
	return &ValidationError{Field: field, Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "dgt0":
		return "must be a positive amount"
	case "category":
		return "unknown category"
	default:
		return "failed " + fe.Tag()
	}
}
