// Package app wires configuration, storage, the storefront service and the
// HTTP server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-kart/internal/handler"
	"github.com/xenking/storefront-kart/internal/storefront"
	"github.com/xenking/storefront-kart/pkg/health"
	"github.com/xenking/storefront-kart/pkg/httpmiddleware"
)

// flushInterval is how often unsaved changes are retried.
const flushInterval = 5 * time.Second

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Backend),
	)
	ctx = zctx.Base(ctx, lg)

	store, closeStore, err := OpenStorage(ctx, lg, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := storefront.New(ctx, store,
		storefront.WithPrefix(cfg.Storage.Prefix),
		storefront.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create storefront")
	}
	lg.Info("Storefront loaded", zap.Int("products", svc.ProductCount(ctx)), zap.Int("cart_lines", len(svc.Cart(ctx).Lines)))

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(store))
	healthSvc.AddReadinessCheck("persistence", time.Second, health.PendingCheck(svc.Pending),
		health.WithThresholds(6, 1))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := NewHandler(ctx, lg, cfg, svc, healthSvc, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return err
	}
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		flushPending(gCtx, svc, flushInterval)
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()

		if svc.Pending() {
			if err := svc.Flush(zctx.Base(shutdownCtx, lg)); err != nil {
				lg.Error("Unsaved changes lost", zap.Error(err))
			}
		}
		return nil
	})
	return g.Wait()
}

// flushPending retries persisting unsaved changes until ctx is done.
func flushPending(ctx context.Context, svc *storefront.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !svc.Pending() {
				continue
			}
			if err := svc.Flush(ctx); err != nil {
				zctx.From(ctx).Debug("Flush retry failed", zap.Error(err))
				continue
			}
			zctx.From(ctx).Info("Unsaved changes persisted")
		}
	}
}

// NewHandler builds the HTTP handler: health probes and the API behind the
// middleware chain.
func NewHandler(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	svc *storefront.Service,
	healthSvc *health.Health,
	mp metric.MeterProvider,
	tp trace.TracerProvider,
) (http.Handler, error) {
	hcfg := handler.Config{
		Middlewares: []httpmiddleware.Middleware{
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		},
	}
	if len(cfg.Operator.KeyHashes) > 0 {
		keys, err := handler.NewKeyChecker(cfg.Operator.Pepper, cfg.Operator.KeyHashes)
		if err != nil {
			return nil, errors.Wrap(err, "operator keys")
		}
		hcfg.OperatorKeys = keys
	} else {
		lg.Warn("Catalog mutations are not guarded by an operator key")
	}

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/", handler.New(svc, hcfg).Router())

	return httpmiddleware.Wrap(router,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.OperatorKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, handler.PendingHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Instrument("storefront-api", mp, tp),
	), nil
}
