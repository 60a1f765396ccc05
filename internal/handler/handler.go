// Package handler exposes the storefront over HTTP.
package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-kart/internal/domain/cart"
	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/kv"
	"github.com/xenking/storefront-kart/internal/storefront"
	"github.com/xenking/storefront-kart/pkg/httpmiddleware"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// PendingHeader is set to "true" on responses to mutations that were applied
// but not yet persisted. The change is retried in the background, so the
// request must not be repeated.
const PendingHeader = "X-Storefront-Pending"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// OperatorKeys guards catalog mutations when set.
	OperatorKeys *KeyChecker
	// Middlewares run inside the router, where the route pattern is known.
	Middlewares []httpmiddleware.Middleware
}

// Handler serves the storefront API.
type Handler struct {
	svc *storefront.Service
	cfg Config
}

// New constructs a Handler.
func New(svc *storefront.Service, cfg Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// Router returns the API routes mounted under /api.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	for _, m := range h.cfg.Middlewares {
		r.Use(m)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Get("/{id}/options", h.ProductOptions)

			r.Group(func(r chi.Router) {
				if h.cfg.OperatorKeys != nil {
					r.Use(h.cfg.OperatorKeys.Middleware)
				}
				r.Post("/", h.CreateProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/lines", h.AddLine)
			r.Put("/lines/{id}", h.SetLineQuantity)
			r.Delete("/lines/{id}", h.RemoveLine)
			r.Post("/lines/{id}/adjust", h.AdjustLine)
		})
	})
	return r
}

// badRequestError marks malformed input.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &badRequestError{err: err}
}

// decodeBody reads the request body and passes it to fn.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest(errors.Wrap(err, "read body"))
	}
	if err := fn(jx.DecodeBytes(data)); err != nil {
		return badRequest(err)
	}
	return nil
}

func productID(r *http.Request) (product.ID, error) {
	id, err := product.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		return 0, badRequest(err)
	}
	return id, nil
}

func lineID(r *http.Request) cart.LineID {
	return cart.LineID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// applied reports whether a mutation took effect. A persistence failure
// leaves the change in memory and is answered as success with PendingHeader.
func applied(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, kv.ErrStorageFull), errors.Is(err, kv.ErrStorageUnavailable):
		w.Header().Set(PendingHeader, "true")
		return true
	default:
		writeError(w, r, err)
		return false
	}
}

// writeError maps domain errors to API error responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad),
		errors.Is(err, product.ErrValidationFailed),
		errors.Is(err, storefront.ErrSelectionRequired):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound), errors.Is(err, cart.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, product.ErrRepresentationUnavailable), errors.Is(err, cart.ErrInvalidQuantity):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, kv.ErrStorageFull), errors.Is(err, kv.ErrStorageUnavailable):
		httpmiddleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
