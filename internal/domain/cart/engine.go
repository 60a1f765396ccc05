package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/kv"
)

// DefaultKey is the key-value key holding the cart document.
const DefaultKey = "storefront/cart"

// Adjustment tells what AdjustLineQuantityBy did to the line.
type Adjustment uint8

// Adjustment outcomes.
const (
	Adjusted Adjustment = iota + 1
	Removed
)

func (a Adjustment) String() string {
	switch a {
	case Adjusted:
		return "adjusted"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithKey overrides the key the cart is persisted under.
func WithKey(key string) Option {
	return func(e *Engine) { e.key = key }
}

// WithLineIDs overrides the line id generator.
func WithLineIDs(next func() LineID) Option {
	return func(e *Engine) { e.newID = next }
}

// Engine owns the cart lines and writes them through to a kv.Store on every
// mutation. It is not safe for concurrent use.
//
// A failed write keeps the mutation in memory, sets Pending and returns an
// error wrapping the kv sentinel together with the affected line.
type Engine struct {
	kv      kv.Store
	key     string
	newID   func() LineID
	lines   []Line
	pending bool
}

var _ product.Purger = (*Engine)(nil)

// NewEngine returns an empty cart persisted in store.
func NewEngine(store kv.Store, opts ...Option) *Engine {
	e := &Engine{
		kv:  store,
		key: DefaultKey,
		newID: func() LineID {
			return LineID(uuid.NewString())
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load replaces the in-memory cart with the persisted one.
func (e *Engine) Load(ctx context.Context) error {
	data, ok, err := e.kv.Get(ctx, e.key)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	e.pending = false
	if !ok {
		e.lines = nil
		return nil
	}
	lines, err := UnmarshalLines(data)
	if err != nil {
		return err
	}
	if err := checkLoaded(lines); err != nil {
		return errors.Wrap(err, "load cart")
	}
	e.lines = lines
	return nil
}

// checkLoaded rejects persisted lines that AddLine could not have produced.
func checkLoaded(lines []Line) error {
	ids := make(map[LineID]bool, len(lines))
	keys := make(map[Key]bool, len(lines))
	for _, l := range lines {
		if ids[l.ID] {
			return errors.Errorf("line %s is repeated", l.ID)
		}
		if keys[l.Key()] {
			return errors.Errorf("line %s repeats product %s with the same price", l.ID, l.ProductID)
		}
		ids[l.ID], keys[l.Key()] = true, true

		if !l.UnitPrice.IsPositive() {
			return errors.Errorf("line %s: unit price must be positive", l.ID)
		}
		if err := checkQuantity(l.Selection.Kind, l.Quantity); err != nil {
			return errors.Wrapf(err, "line %s", l.ID)
		}
	}
	return nil
}

// Flush writes the full cart.
func (e *Engine) Flush(ctx context.Context) error {
	return e.persist(ctx)
}

// Pending reports whether the last write failed.
func (e *Engine) Pending() bool {
	return e.pending
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.kv.Put(ctx, e.key, MarshalLines(e.lines)); err != nil {
		e.pending = true
		return errors.Wrap(err, "persist cart")
	}
	e.pending = false
	return nil
}

// AddLine resolves the unit price of sel on p and adds quantity to the cart.
// A line with the same product and selection absorbs the quantity; otherwise
// a new line is created with the price frozen. Resolution failures are
// returned unchanged and leave the cart untouched.
func (e *Engine) AddLine(ctx context.Context, p product.Product, sel product.Selection, quantity decimal.Decimal) (Line, error) {
	price, err := product.ResolveUnitPrice(p, sel)
	if err != nil {
		return Line{}, err
	}
	if err := checkQuantity(sel.Kind, quantity); err != nil {
		return Line{}, err
	}

	key := Key{ProductID: p.ID, Selection: sel}
	for i := range e.lines {
		if e.lines[i].Key() == key {
			e.lines[i].Quantity = e.lines[i].Quantity.Add(quantity)
			return e.lines[i], e.persist(ctx)
		}
	}

	l := Line{
		ID:        e.newID(),
		ProductID: p.ID,
		Name:      p.Name,
		Selection: sel,
		UnitPrice: price,
		Quantity:  quantity,
	}
	e.lines = append(e.lines, l)
	return l, e.persist(ctx)
}

// SetLineQuantity replaces a line's quantity. Non-positive values are
// rejected; removing a line takes an explicit RemoveLine.
func (e *Engine) SetLineQuantity(ctx context.Context, id LineID, quantity decimal.Decimal) (Line, error) {
	i := e.index(id)
	if i < 0 {
		return Line{}, errors.Wrapf(ErrNotFound, "set quantity of %s", id)
	}
	if err := checkQuantity(e.lines[i].Selection.Kind, quantity); err != nil {
		return Line{}, err
	}
	e.lines[i].Quantity = quantity
	return e.lines[i], e.persist(ctx)
}

// AdjustLineQuantityBy adds delta to a line's quantity, as a stepper does.
// When the result is zero or less the line is removed and Removed is
// returned with the line as it was.
func (e *Engine) AdjustLineQuantityBy(ctx context.Context, id LineID, delta decimal.Decimal) (Line, Adjustment, error) {
	i := e.index(id)
	if i < 0 {
		return Line{}, 0, errors.Wrapf(ErrNotFound, "adjust quantity of %s", id)
	}
	if err := checkDelta(e.lines[i].Selection.Kind, delta); err != nil {
		return Line{}, 0, err
	}

	next := e.lines[i].Quantity.Add(delta)
	if !next.IsPositive() {
		removed := e.lines[i]
		e.lines = append(e.lines[:i:i], e.lines[i+1:]...)
		return removed, Removed, e.persist(ctx)
	}
	e.lines[i].Quantity = next
	return e.lines[i], Adjusted, e.persist(ctx)
}

// RemoveLine deletes a line.
func (e *Engine) RemoveLine(ctx context.Context, id LineID) error {
	i := e.index(id)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "remove %s", id)
	}
	e.lines = append(e.lines[:i:i], e.lines[i+1:]...)
	return e.persist(ctx)
}

// Clear empties the cart.
func (e *Engine) Clear(ctx context.Context) error {
	e.lines = nil
	return e.persist(ctx)
}

// PurgeByProduct removes every line referencing the product and returns how
// many were removed. Nothing is written when no line matches.
func (e *Engine) PurgeByProduct(ctx context.Context, id product.ID) (int, error) {
	kept := e.lines[:0:0]
	for _, l := range e.lines {
		if l.ProductID != id {
			kept = append(kept, l)
		}
	}
	removed := len(e.lines) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	e.lines = kept
	return removed, e.persist(ctx)
}

// Line returns the line with the given id.
func (e *Engine) Line(id LineID) (Line, bool) {
	i := e.index(id)
	if i < 0 {
		return Line{}, false
	}
	return e.lines[i], true
}

// Lines returns the lines in insertion order.
func (e *Engine) Lines() []Line {
	return append([]Line(nil), e.lines...)
}

// Len returns the number of lines.
func (e *Engine) Len() int {
	return len(e.lines)
}

// GrandTotal returns the exact sum of all line totals.
func (e *Engine) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.lines {
		total = total.Add(l.Total())
	}
	return total
}

func (e *Engine) index(id LineID) int {
	for i, l := range e.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
