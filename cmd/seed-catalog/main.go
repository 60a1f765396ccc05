// Command seed-catalog adds the products of one or more seed files to the
// configured storage backend. Products whose name is already in the catalog
// are skipped, so the tool can run repeatedly.
package main

import (
	"context"
	"flag"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	appkg "github.com/xenking/storefront-kart/internal/app"
	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/seed"
	"github.com/xenking/storefront-kart/internal/storefront"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		flag.Parse()
		paths := flag.Args()
		if len(paths) == 0 {
			paths = []string{"db/seed/products.json"}
		}

		cfg, err := appkg.LoadConfigWithoutFlags()
		if err != nil {
			return err
		}
		return run(zctx.Base(ctx, lg), cfg.Storage, paths)
	})
}

func run(ctx context.Context, cfg appkg.StorageConfig, paths []string) error {
	lg := zctx.From(ctx)

	files, err := seed.ReadFiles(ctx, paths)
	if err != nil {
		return errors.Wrap(err, "read seed files")
	}

	store, closeStore, err := appkg.OpenStorage(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog := product.NewStore(store, product.WithKey(cfg.Prefix+storefront.ProductsKey))
	if err := catalog.Load(ctx); err != nil {
		return errors.Wrap(err, "load catalog")
	}

	res, err := seed.Apply(ctx, catalog, files)
	if err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	lg.Info("Seed completed",
		zap.Int("added", res.Added),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid),
		zap.Int("products", catalog.Len()),
	)
	return nil
}
