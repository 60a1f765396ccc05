// Package storefront wires the catalog and the cart into one service that is
// safe for concurrent callers.
package storefront

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/storefront-kart/internal/domain/cart"
	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/kv"
)

// ErrSelectionRequired is returned when a product offers several prices and
// the caller did not pick one.
var ErrSelectionRequired = errors.New("price selection required")

// DefaultPrefix namespaces the persisted documents.
const DefaultPrefix = "storefront/"

// Document names under the prefix.
const (
	ProductsKey = "products"
	CartKey     = "cart"
)

// Option configures a Service.
type Option func(*options)

type options struct {
	prefix string
	meter  metric.MeterProvider
	lineID func() cart.LineID
}

// WithPrefix sets the key prefix of the catalog and cart documents.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithMeterProvider sets the provider used for service metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// WithLineIDs overrides cart line id generation.
func WithLineIDs(next func() cart.LineID) Option {
	return func(o *options) { o.lineID = next }
}

// Service serializes access to the catalog and the cart. Deleting a product
// purges its cart lines.
type Service struct {
	mu      sync.Mutex
	catalog *product.Store
	cart    *cart.Engine
	metrics *metrics
}

// New builds the service on store and loads the persisted state.
func New(ctx context.Context, store kv.Store, opts ...Option) (*Service, error) {
	o := options{
		prefix: DefaultPrefix,
		meter:  noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cartOpts := []cart.Option{cart.WithKey(o.prefix + CartKey)}
	if o.lineID != nil {
		cartOpts = append(cartOpts, cart.WithLineIDs(o.lineID))
	}
	engine := cart.NewEngine(store, cartOpts...)
	catalog := product.NewStore(store,
		product.WithKey(o.prefix + ProductsKey),
		product.WithPurger(engine),
	)

	if err := catalog.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	if err := engine.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	s := &Service{catalog: catalog, cart: engine}
	m, err := newMetrics(o.meter, s)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}
	s.metrics = m
	return s, nil
}

// done records the outcome of a mutation and logs persistence failures.
func (s *Service) done(ctx context.Context, op string, err error) {
	s.metrics.mutation(ctx, op, err)
	if err == nil {
		return
	}
	if errors.Is(err, kv.ErrStorageFull) || errors.Is(err, kv.ErrStorageUnavailable) {
		zctx.From(ctx).Warn("Persist failed, change kept in memory",
			zap.String("op", op),
			zap.Bool("catalog_pending", s.catalog.Pending()),
			zap.Bool("cart_pending", s.cart.Pending()),
			zap.Error(err),
		)
	}
}

// Products lists the catalog filtered by category; product.AnyCategory
// returns everything.
func (s *Service) Products(_ context.Context, c product.Category) []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.ListByCategory(c)
}

// Categories returns the categories in use.
func (s *Service) Categories(context.Context) []product.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Categories()
}

// ProductCount returns the number of products in the catalog.
func (s *Service) ProductCount(context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Len()
}

// Product returns one product.
func (s *Service) Product(_ context.Context, id product.ID) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Get(id)
}

// Options returns the price choices of a product.
func (s *Service) Options(_ context.Context, id product.ID) ([]product.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	return product.Options(p), nil
}

// CreateProduct adds a product to the catalog.
func (s *Service) CreateProduct(ctx context.Context, d product.Draft) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.catalog.Add(ctx, d)
	s.done(ctx, "product.create", err)
	return p, err
}

// UpdateProduct replaces a product's fields. Existing cart lines keep their
// prices.
func (s *Service) UpdateProduct(ctx context.Context, id product.ID, d product.Draft) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.catalog.Update(ctx, id, d)
	s.done(ctx, "product.update", err)
	return p, err
}

// DeleteProduct removes a product and every cart line referencing it.
func (s *Service) DeleteProduct(ctx context.Context, id product.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.catalog.Delete(ctx, id)
	s.done(ctx, "product.delete", err)
	return err
}

// AddRequest asks to put a product into the cart.
type AddRequest struct {
	ProductID product.ID
	// Selection may be zero when the product has a single price.
	Selection product.Selection
	// Quantity defaults to 1 when invalid.
	Quantity decimal.NullDecimal
}

// AddToCart resolves the product and adds it to the cart. A product with a
// single price needs no selection; per-weight prices then default to pounds.
func (s *Service) AddToCart(ctx context.Context, req AddRequest) (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.addToCart(ctx, req)
	s.done(ctx, "cart.add", err)
	return l, err
}

func (s *Service) addToCart(ctx context.Context, req AddRequest) (cart.Line, error) {
	p, err := s.catalog.Get(req.ProductID)
	if err != nil {
		return cart.Line{}, err
	}
	sel, err := selectionFor(p, req.Selection)
	if err != nil {
		return cart.Line{}, err
	}
	q := decimal.NewFromInt(1)
	if req.Quantity.Valid {
		q = req.Quantity.Decimal
	}
	return s.cart.AddLine(ctx, p, sel, q)
}

func selectionFor(p product.Product, sel product.Selection) (product.Selection, error) {
	if sel.Kind != 0 {
		return sel, nil
	}
	if product.CountAvailable(p) != 1 {
		return sel, errors.Wrapf(ErrSelectionRequired, "product %s has %d prices", p.ID, product.CountAvailable(p))
	}
	switch r := p.Representations[0].(type) {
	case product.Package:
		return r.Selection(), nil
	case product.PerUnit:
		return r.Selection(), nil
	case product.PerWeight:
		return product.ByWeight(product.Pound), nil
	default:
		return sel, errors.Wrapf(ErrSelectionRequired, "product %s", p.ID)
	}
}

// SetQuantity replaces a line's quantity.
func (s *Service) SetQuantity(ctx context.Context, id cart.LineID, q decimal.Decimal) (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.cart.SetLineQuantity(ctx, id, q)
	s.done(ctx, "cart.set", err)
	return l, err
}

// AdjustQuantity changes a line's quantity by delta, removing the line when
// it drops to zero or below.
func (s *Service) AdjustQuantity(ctx context.Context, id cart.LineID, delta decimal.Decimal) (cart.Line, cart.Adjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, adj, err := s.cart.AdjustLineQuantityBy(ctx, id, delta)
	s.done(ctx, "cart.adjust", err)
	return l, adj, err
}

// RemoveLine deletes a cart line.
func (s *Service) RemoveLine(ctx context.Context, id cart.LineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.cart.RemoveLine(ctx, id)
	s.done(ctx, "cart.remove", err)
	return err
}

// ClearCart empties the cart.
func (s *Service) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.cart.Clear(ctx)
	s.done(ctx, "cart.clear", err)
	return err
}

// Summary is a consistent snapshot of the cart.
type Summary struct {
	Lines      []cart.Line
	GrandTotal decimal.Decimal
	Pending    bool
}

// Cart returns the current cart.
func (s *Service) Cart(context.Context) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Lines:      s.cart.Lines(),
		GrandTotal: s.cart.GrandTotal(),
		Pending:    s.cart.Pending(),
	}
}

// Pending reports whether either store holds changes that failed to persist.
func (s *Service) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Pending() || s.cart.Pending()
}

// Flush retries persisting whichever store is pending.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.catalog.Pending() {
		err = multierr.Append(err, s.catalog.Flush(ctx))
	}
	if s.cart.Pending() {
		err = multierr.Append(err, s.cart.Flush(ctx))
	}
	s.done(ctx, "flush", err)
	return err
}
