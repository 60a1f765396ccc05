package product

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"

	"github.com/xenking/storefront-kart/internal/kv"
)

// DefaultKey is the key-value key holding the catalog document.
const DefaultKey = "storefront/products"

// Purger drops every cart line referencing a deleted product.
type Purger interface {
	PurgeByProduct(ctx context.Context, id ID) (int, error)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKey overrides the key the catalog is persisted under.
func WithKey(key string) StoreOption {
	return func(s *Store) { s.key = key }
}

// WithPurger sets the collaborator notified when a product is deleted.
func WithPurger(p Purger) StoreOption {
	return func(s *Store) { s.purger = p }
}

// Store is the catalog: the ordered set of products, written through to a
// kv.Store on every mutation. It is not safe for concurrent use.
//
// When a write fails the mutation stays applied in memory, Pending reports
// true and the error wraps kv.ErrStorageFull or kv.ErrStorageUnavailable. The
// next successful write, or Flush, persists the full state.
type Store struct {
	kv       kv.Store
	key      string
	purger   Purger
	products []Product
	nextID   ID
	pending  bool
}

// NewStore returns an empty catalog persisted in store. Call Load to restore
// previously saved state.
func NewStore(store kv.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:     store,
		key:    DefaultKey,
		nextID: 1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces the in-memory catalog with the persisted one. A missing
// document yields an empty catalog.
func (s *Store) Load(ctx context.Context) error {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	if !ok {
		s.products = nil
		s.nextID = 1
		s.pending = false
		return nil
	}

	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	if err := checkLoaded(snap.Products); err != nil {
		return errors.Wrap(err, "load catalog")
	}
	next := max(snap.NextID, 1)
	for _, p := range snap.Products {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	s.products = snap.Products
	s.nextID = next
	s.pending = false
	return nil
}

// checkLoaded applies the rules of Add to a persisted catalog.
func checkLoaded(products []Product) error {
	seen := make(map[ID]bool, len(products))
	for _, p := range products {
		if p.ID <= 0 || seen[p.ID] {
			return errors.Errorf("product id %s is invalid or repeated", p.ID)
		}
		seen[p.ID] = true
		d := Draft{Name: p.Name, Category: p.Category, Representations: p.Representations}
		if _, err := d.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
	}
	return nil
}

// Flush writes the full catalog.
func (s *Store) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// Pending reports whether the last write failed.
func (s *Store) Pending() bool {
	return s.pending
}

func (s *Store) persist(ctx context.Context) error {
	data := MarshalSnapshot(Snapshot{NextID: s.nextID, Products: s.products})
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		s.pending = true
		return errors.Wrap(err, "persist catalog")
	}
	s.pending = false
	return nil
}

// Add validates the draft, assigns a fresh id and appends the product.
func (s *Store) Add(ctx context.Context, d Draft) (Product, error) {
	d, err := d.Validate()
	if err != nil {
		return Product{}, err
	}

	p := Product{
		ID:              s.nextID,
		Name:            d.Name,
		Category:        d.Category,
		Representations: d.Representations,
	}
	s.nextID++
	s.products = append(s.products, p)

	return clone(p), s.persist(ctx)
}

// Update replaces the product's fields in place. Cart lines keep the prices
// they were created with.
func (s *Store) Update(ctx context.Context, id ID, d Draft) (Product, error) {
	i := s.index(id)
	if i < 0 {
		return Product{}, errors.Wrapf(ErrNotFound, "update %s", id)
	}
	d, err := d.Validate()
	if err != nil {
		return Product{}, err
	}

	p := Product{
		ID:              id,
		Name:            d.Name,
		Category:        d.Category,
		Representations: d.Representations,
	}
	s.products[i] = p

	return clone(p), s.persist(ctx)
}

// Delete removes the product and purges cart lines referencing it. Failures
// to persist the catalog and to purge the cart are reported together.
func (s *Store) Delete(ctx context.Context, id ID) error {
	i := s.index(id)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "delete %s", id)
	}
	s.products = append(s.products[:i:i], s.products[i+1:]...)

	err := s.persist(ctx)
	if s.purger != nil {
		if _, perr := s.purger.PurgeByProduct(ctx, id); perr != nil {
			err = multierr.Append(err, errors.Wrap(perr, "purge cart"))
		}
	}
	return err
}

// Get returns the product with the given id.
func (s *Store) Get(id ID) (Product, error) {
	i := s.index(id)
	if i < 0 {
		return Product{}, errors.Wrapf(ErrNotFound, "get %s", id)
	}
	return clone(s.products[i]), nil
}

// ListByCategory returns the products of category c in insertion order, or
// every product for AnyCategory. An unknown category yields no products.
func (s *Store) ListByCategory(c Category) []Product {
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if c == AnyCategory || p.Category == c {
			out = append(out, clone(p))
		}
	}
	return out
}

// Categories returns the categories that have at least one product, in the
// order they first appear in the catalog.
func (s *Store) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, p := range s.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Len returns the number of products.
func (s *Store) Len() int {
	return len(s.products)
}

func (s *Store) index(id ID) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func clone(p Product) Product {
	p.Representations = append([]Representation(nil), p.Representations...)
	return p
}
