// Package seed loads product seed files into the catalog.
package seed

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-kart/internal/domain/product"
)

const (
	bloomCapacity = 100_000
	bloomFPR      = 0.001
)

// File is the drafts read from one seed file.
type File struct {
	Path   string
	Drafts []product.Draft
}

// ReadFile reads a JSON array of product drafts. Files ending in .gz are
// decompressed first.
func ReadFile(ctx context.Context, path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return File{}, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	out := File{Path: path}
	err = jx.Decode(r, 64*1024).Arr(func(d *jx.Decoder) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		dr, err := product.DecodeDraft(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(out.Drafts)+1)
		}
		out.Drafts = append(out.Drafts, dr)
		return nil
	})
	if err != nil {
		return File{}, errors.Wrapf(err, "decode %s", path)
	}
	return out, nil
}

// ReadFiles reads every path concurrently. The result keeps the order of
// paths.
func ReadFiles(ctx context.Context, paths []string) ([]File, error) {
	files := make([]File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			f, err := ReadFile(ctx, path)
			if err != nil {
				return err
			}
			zctx.From(ctx).Info("Seed file read", zap.String("path", path), zap.Int("products", len(f.Drafts)))
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// nameKey is the identity used to detect duplicate products.
func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Deduper drops products whose name was already seen. The bloom filter
// answers most lookups; its positives are confirmed against the exact set.
type Deduper struct {
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		seen:   make(map[string]struct{}),
	}
}

// Seen reports whether name was added before.
func (d *Deduper) Seen(name string) bool {
	key := nameKey(name)
	if !d.filter.TestString(key) {
		return false
	}
	_, ok := d.seen[key]
	return ok
}

// Add records name.
func (d *Deduper) Add(name string) {
	key := nameKey(name)
	d.filter.AddString(key)
	d.seen[key] = struct{}{}
}

// Result summarizes a seeding run.
type Result struct {
	Added      int
	Duplicates int
	Invalid    int
}

// Apply adds the drafts of files to store in order, skipping names already
// in the catalog or seen earlier. Invalid drafts are logged and skipped;
// storage errors abort.
func Apply(ctx context.Context, store *product.Store, files []File) (Result, error) {
	lg := zctx.From(ctx)
	dedupe := NewDeduper()
	for _, p := range store.ListByCategory(product.AnyCategory) {
		dedupe.Add(p.Name)
	}

	var res Result
	for _, f := range files {
		for _, dr := range f.Drafts {
			if dedupe.Seen(dr.Name) {
				res.Duplicates++
				lg.Debug("Duplicate product skipped", zap.String("path", f.Path), zap.String("name", dr.Name))
				continue
			}
			p, err := store.Add(ctx, dr)
			switch {
			case errors.Is(err, product.ErrValidationFailed):
				res.Invalid++
				lg.Warn("Invalid product skipped", zap.String("path", f.Path), zap.String("name", dr.Name), zap.Error(err))
				continue
			case err != nil:
				return res, errors.Wrapf(err, "add %q", dr.Name)
			}
			dedupe.Add(p.Name)
			res.Added++
			lg.Debug("Product added", zap.Stringer("id", p.ID), zap.String("name", p.Name))
		}
	}
	return res, nil
}
