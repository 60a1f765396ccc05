package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/money"
)

const linesVersion = 1

// MarshalLines encodes the cart as a versioned JSON document.
func MarshalLines(lines []Line) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.Int(linesVersion) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					EncodeLine(e, l)
				}
			})
		})
	})
	return e.Bytes()
}

// UnmarshalLines decodes a document written by MarshalLines.
func UnmarshalLines(data []byte) ([]Line, error) {
	var (
		lines   []Line
		version int
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			version = v
			return err
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := DecodeLine(d)
				if err != nil {
					return err
				}
				lines = append(lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	if version != linesVersion {
		return nil, errors.Errorf("decode cart: unsupported version %d", version)
	}
	return lines, nil
}

// EncodeLine writes l as a JSON object. Decimals keep their exact scale.
func EncodeLine(e *jx.Encoder, l Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(string(l.ID)) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(int64(l.ProductID)) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(l.Selection.Kind.String()) })
		if l.Selection.Unit != product.NoUnit {
			e.Field("unit", func(e *jx.Encoder) { e.Str(l.Selection.Unit.String()) })
		}
		e.Field("unit_price", func(e *jx.Encoder) { money.Encode(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { money.Encode(e, l.Quantity) })
	})
}

// DecodeLine reads an object written by EncodeLine.
func DecodeLine(d *jx.Decoder) (Line, error) {
	var l Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			var v string
			v, err = d.Str()
			l.ID = LineID(v)
		case "product_id":
			var v int64
			v, err = d.Int64()
			l.ProductID = product.ID(v)
		case "name":
			l.Name, err = d.Str()
		case "kind":
			var v string
			if v, err = d.Str(); err == nil {
				l.Selection.Kind, err = product.ParseKind(v)
			}
		case "unit":
			var v string
			if v, err = d.Str(); err == nil {
				l.Selection.Unit, err = product.ParseWeightUnit(v)
			}
		case "unit_price":
			l.UnitPrice, err = money.Decode(d)
		case "quantity":
			l.Quantity, err = money.Decode(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return Line{}, errors.Wrap(err, "decode line")
	}
	if l.ID == "" {
		return Line{}, errors.New("decode line: missing id")
	}
	return l, nil
}
