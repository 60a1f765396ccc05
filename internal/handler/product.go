package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/money"
)

// ListProducts serves GET /api/products?category=...
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	c := product.AnyCategory
	if v := r.URL.Query().Get("category"); v != "" {
		c = product.Category(v)
	}
	if c != product.AnyCategory && !c.Valid() {
		writeError(w, r, badRequest(errors.Errorf("unknown category %q", c)))
		return
	}

	products := h.svc.Products(r.Context(), c)
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			product.EncodeProduct(e, p)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// ListCategories serves GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	used := h.svc.Categories(r.Context())
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("used", func(e *jx.Encoder) { encodeCategories(e, used) })
		e.Field("all", func(e *jx.Encoder) { encodeCategories(e, product.AllCategories()) })
	})
	writeJSON(w, http.StatusOK, &e)
}

func encodeCategories(e *jx.Encoder, cs []product.Category) {
	e.Arr(func(e *jx.Encoder) {
		for _, c := range cs {
			e.Str(string(c))
		}
	})
}

// GetProduct serves GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Product(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeProduct(w, http.StatusOK, p)
}

// ProductOptions serves GET /api/products/{id}/options.
func (h *Handler) ProductOptions(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := h.svc.Options(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, o := range opts {
			e.Obj(func(e *jx.Encoder) {
				encodeSelection(e, o.Selection)
				e.Field("unit_price", func(e *jx.Encoder) { money.Encode(e, o.UnitPrice) })
				e.Field("label", func(e *jx.Encoder) { e.Str(o.Label) })
			})
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// CreateProduct serves POST /api/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var d product.Draft
	if err := decodeBody(w, r, func(dec *jx.Decoder) (err error) {
		d, err = product.DecodeDraft(dec)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), d)
	if !applied(w, r, err) {
		return
	}
	writeProduct(w, http.StatusCreated, p)
}

// UpdateProduct serves PUT /api/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var d product.Draft
	if err := decodeBody(w, r, func(dec *jx.Decoder) (err error) {
		d, err = product.DecodeDraft(dec)
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, d)
	if !applied(w, r, err) {
		return
	}
	writeProduct(w, http.StatusOK, p)
}

// DeleteProduct serves DELETE /api/products/{id}. Cart lines of the product
// are removed with it.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !applied(w, r, h.svc.DeleteProduct(r.Context(), id)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeProduct(w http.ResponseWriter, code int, p product.Product) {
	var e jx.Encoder
	product.EncodeProduct(&e, p)
	writeJSON(w, code, &e)
}
