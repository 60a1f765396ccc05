package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront-kart/internal/domain/cart"
	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/kv"
)

const meterName = "github.com/xenking/storefront-kart/internal/storefront"

type metrics struct {
	mutations metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider, s *Service) (*metrics, error) {
	meter := mp.Meter(meterName)

	mutations, err := meter.Int64Counter("storefront.mutations",
		metric.WithDescription("Catalog and cart mutations by operation and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "mutations counter")
	}

	if _, err := meter.Int64ObservableGauge("storefront.cart.lines",
		metric.WithDescription("Lines currently in the cart"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			o.Observe(int64(s.cart.Len()))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "cart lines gauge")
	}

	if _, err := meter.Int64ObservableGauge("storefront.catalog.products",
		metric.WithDescription("Products in the catalog"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			o.Observe(int64(s.catalog.Len()))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "catalog products gauge")
	}

	return &metrics{mutations: mutations}, nil
}

func (m *metrics) mutation(ctx context.Context, op string, err error) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result(err)),
	))
}

// result names the outcome of a mutation for metric labels.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, kv.ErrStorageFull):
		return "storage_full"
	case errors.Is(err, kv.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, product.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, product.ErrNotFound), errors.Is(err, cart.ErrNotFound):
		return "not_found"
	case errors.Is(err, product.ErrRepresentationUnavailable):
		return "unavailable"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrSelectionRequired):
		return "selection_required"
	default:
		return "error"
	}
}
