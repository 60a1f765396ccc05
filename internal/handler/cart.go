package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-kart/internal/domain/cart"
	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/money"
	"github.com/xenking/storefront-kart/internal/storefront"
)

// GetCart serves GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sum := h.svc.Cart(r.Context())
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range sum.Lines {
					encodeLine(e, l)
				}
			})
		})
		e.Field("grand_total", func(e *jx.Encoder) { money.Encode(e, sum.GrandTotal) })
		e.Field("display_total", func(e *jx.Encoder) { e.Str(money.Format(sum.GrandTotal)) })
		e.Field("pending", func(e *jx.Encoder) { e.Bool(sum.Pending) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// ClearCart serves DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if !applied(w, r, h.svc.ClearCart(r.Context())) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLine serves POST /api/cart/lines with
// {"product_id": 1, "kind": "per_weight", "unit": "kilo", "quantity": "1.25"}.
// kind and quantity are optional.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req storefront.AddRequest
	if err := decodeBody(w, r, func(d *jx.Decoder) error {
		var kind, unit string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				var v int64
				v, err = d.Int64()
				req.ProductID = product.ID(v)
			case "kind":
				kind, err = d.Str()
			case "unit":
				unit, err = d.Str()
			case "quantity":
				var q decimal.Decimal
				q, err = money.Decode(d)
				req.Quantity = decimal.NewNullDecimal(q)
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrap(err, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		req.Selection, err = parseSelection(kind, unit)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.svc.AddToCart(r.Context(), req)
	if !applied(w, r, err) {
		return
	}
	writeLine(w, http.StatusCreated, l)
}

// SetLineQuantity serves PUT /api/cart/lines/{id} with {"quantity": "3"}.
func (h *Handler) SetLineQuantity(w http.ResponseWriter, r *http.Request) {
	q, err := decodeDecimalField(w, r, "quantity")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.svc.SetQuantity(r.Context(), lineID(r), q)
	if !applied(w, r, err) {
		return
	}
	writeLine(w, http.StatusOK, l)
}

// AdjustLine serves POST /api/cart/lines/{id}/adjust with {"delta": "-1"}.
// The line is removed when its quantity drops to zero or below.
func (h *Handler) AdjustLine(w http.ResponseWriter, r *http.Request) {
	delta, err := decodeDecimalField(w, r, "delta")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, adj, err := h.svc.AdjustQuantity(r.Context(), lineID(r), delta)
	if !applied(w, r, err) {
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("result", func(e *jx.Encoder) { e.Str(adj.String()) })
		e.Field("line", func(e *jx.Encoder) { encodeLine(e, l) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// RemoveLine serves DELETE /api/cart/lines/{id}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if !applied(w, r, h.svc.RemoveLine(r.Context(), lineID(r))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseSelection(kind, unit string) (product.Selection, error) {
	if kind == "" {
		if unit != "" {
			return product.Selection{}, errors.New("unit given without kind")
		}
		return product.Selection{}, nil
	}
	k, err := product.ParseKind(kind)
	if err != nil {
		return product.Selection{}, err
	}
	if k != product.KindPerWeight {
		if unit != "" {
			return product.Selection{}, errors.Errorf("unit is only valid for %s", product.KindPerWeight)
		}
		return product.Selection{Kind: k}, nil
	}
	u, err := product.ParseWeightUnit(unit)
	if err != nil {
		return product.Selection{}, err
	}
	if u == product.NoUnit {
		u = product.Pound
	}
	return product.ByWeight(u), nil
}

func decodeDecimalField(w http.ResponseWriter, r *http.Request, field string) (decimal.Decimal, error) {
	var (
		v   decimal.Decimal
		set bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != field {
				return d.Skip()
			}
			var err error
			if v, err = money.Decode(d); err != nil {
				return errors.Wrap(err, key)
			}
			set = true
			return nil
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !set {
		return decimal.Zero, badRequest(errors.Errorf("%s is required", field))
	}
	return v, nil
}

func encodeSelection(e *jx.Encoder, sel product.Selection) {
	e.Field("kind", func(e *jx.Encoder) { e.Str(sel.Kind.String()) })
	if sel.Unit != product.NoUnit {
		e.Field("unit", func(e *jx.Encoder) { e.Str(sel.Unit.String()) })
	}
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(string(l.ID)) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(int64(l.ProductID)) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		encodeSelection(e, l.Selection)
		e.Field("unit_price", func(e *jx.Encoder) { money.Encode(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { money.Encode(e, l.Quantity) })
		e.Field("quantity_unit", func(e *jx.Encoder) { e.Str(l.QuantityUnit()) })
		e.Field("total", func(e *jx.Encoder) { money.Encode(e, l.Total()) })
		e.Field("display_total", func(e *jx.Encoder) { e.Str(money.Format(l.Total())) })
	})
}

func writeLine(w http.ResponseWriter, code int, l cart.Line) {
	var e jx.Encoder
	encodeLine(&e, l)
	writeJSON(w, code, &e)
}
