package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-kart/internal/money"
)

// snapshotVersion is bumped whenever the persisted catalog layout changes.
const snapshotVersion = 1

// Snapshot is the persisted state of the catalog.
type Snapshot struct {
	NextID   ID
	Products []Product
}

// MarshalSnapshot encodes the catalog as a versioned JSON document.
func MarshalSnapshot(s Snapshot) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.Int(snapshotVersion) })
		e.Field("next_id", func(e *jx.Encoder) { e.Int64(int64(s.NextID)) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range s.Products {
					EncodeProduct(e, p)
				}
			})
		})
	})
	return e.Bytes()
}

// UnmarshalSnapshot decodes a document written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var (
		s       Snapshot
		version int
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "version":
			version, err = d.Int()
		case "next_id":
			var v int64
			v, err = d.Int64()
			s.NextID = ID(v)
		case "products":
			err = d.Arr(func(d *jx.Decoder) error {
				p, err := DecodeProduct(d)
				if err != nil {
					return err
				}
				s.Products = append(s.Products, p)
				return nil
			})
		default:
			err = d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "decode catalog")
	}
	if version != snapshotVersion {
		return Snapshot{}, errors.Errorf("decode catalog: unsupported version %d", version)
	}
	return s, nil
}

// EncodeProduct writes p as a JSON object.
func EncodeProduct(e *jx.Encoder, p Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(int64(p.ID)) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(string(p.Category)) })
		e.Field("prices", func(e *jx.Encoder) { EncodeRepresentations(e, p.Representations) })
	})
}

// DecodeProduct reads an object written by EncodeProduct.
func DecodeProduct(d *jx.Decoder) (Product, error) {
	var p Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Int64()
			p.ID = ID(v)
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "category":
			v, err := d.Str()
			p.Category = Category(v)
			return err
		case "prices":
			reps, err := DecodeRepresentations(d)
			p.Representations = reps
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Product{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

// EncodeRepresentations writes the representations as a JSON array of
// objects tagged by "kind".
func EncodeRepresentations(e *jx.Encoder, reps []Representation) {
	e.Arr(func(e *jx.Encoder) {
		for _, r := range reps {
			encodeRepresentation(e, r)
		}
	})
}

func encodeRepresentation(e *jx.Encoder, r Representation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("kind", func(e *jx.Encoder) { e.Str(r.Kind().String()) })
		switch r := r.(type) {
		case Package:
			e.Field("price", func(e *jx.Encoder) { money.Encode(e, r.Price) })
			e.Field("unit_label", func(e *jx.Encoder) { e.Str(r.UnitLabel) })
		case PerUnit:
			e.Field("price", func(e *jx.Encoder) { money.Encode(e, r.Price) })
			e.Field("units_per_package", func(e *jx.Encoder) { e.Int(r.UnitsPerPackage) })
		case PerWeight:
			if r.Pound.Valid {
				e.Field("price_per_pound", func(e *jx.Encoder) { money.Encode(e, r.Pound.Decimal) })
			}
			if r.Kilo.Valid {
				e.Field("price_per_kilo", func(e *jx.Encoder) { money.Encode(e, r.Kilo.Decimal) })
			}
		}
	})
}

// DecodeRepresentations reads an array written by EncodeRepresentations.
func DecodeRepresentations(d *jx.Decoder) ([]Representation, error) {
	var reps []Representation
	err := d.Arr(func(d *jx.Decoder) error {
		r, err := decodeRepresentation(d)
		if err != nil {
			return err
		}
		reps = append(reps, r)
		return nil
	})
	return reps, err
}

// decodeRepresentation buffers the fields first because "kind" may appear
// after the price fields.
func decodeRepresentation(d *jx.Decoder) (Representation, error) {
	var (
		kind            string
		price           decimal.NullDecimal
		unitLabel       string
		unitsPerPackage int
		pound, kilo     decimal.NullDecimal
	)
	decodeNull := func(d *jx.Decoder, dst *decimal.NullDecimal) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := money.Decode(d)
		if err != nil {
			return err
		}
		*dst = decimal.NewNullDecimal(v)
		return nil
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "kind":
			kind, err = d.Str()
		case "price":
			err = decodeNull(d, &price)
		case "unit_label":
			unitLabel, err = d.Str()
		case "units_per_package":
			unitsPerPackage, err = d.Int()
		case "price_per_pound":
			err = decodeNull(d, &pound)
		case "price_per_kilo":
			err = decodeNull(d, &kilo)
		default:
			err = d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return nil, err
	}

	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case KindPackage:
		return Package{Price: price.Decimal, UnitLabel: unitLabel}, nil
	case KindPerUnit:
		return PerUnit{Price: price.Decimal, UnitsPerPackage: unitsPerPackage}, nil
	case KindPerWeight:
		return PerWeight{Pound: pound, Kilo: kilo}, nil
	default:
		return nil, errors.Errorf("unknown price kind %q", kind)
	}
}

// DecodeDraft reads operator input of the form
// {"name": ..., "category": ..., "prices": [...]}.
func DecodeDraft(d *jx.Decoder) (Draft, error) {
	var dr Draft
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			dr.Name = v
			return err
		case "category":
			v, err := d.Str()
			dr.Category = Category(v)
			return err
		case "prices":
			reps, err := DecodeRepresentations(d)
			dr.Representations = reps
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Draft{}, errors.Wrap(err, "decode product input")
	}
	return dr, nil
}

// wrapField names the JSON field a decode error happened in.
func wrapField(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, key)
}
