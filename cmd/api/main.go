package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/dejobratic/storefront/internal/alerting"
	"github.com/dejobratic/storefront/internal/auth"
	checkouthttp "github.com/dejobratic/storefront/internal/checkout/adapters/http"
	checkoutpostgres "github.com/dejobratic/storefront/internal/checkout/adapters/postgres"
	checkoutapp "github.com/dejobratic/storefront/internal/checkout/app"
	checkoutmetrics "github.com/dejobratic/storefront/internal/checkout/metrics"
	"github.com/dejobratic/storefront/internal/config"
	couponshttp "github.com/dejobratic/storefront/internal/coupons/adapters/http"
	couponspostgres "github.com/dejobratic/storefront/internal/coupons/adapters/postgres"
	couponsapp "github.com/dejobratic/storefront/internal/coupons/app"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/httpapi"
	"github.com/dejobratic/storefront/internal/idempotency"
	idempotencymemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	idempotencypostgres "github.com/dejobratic/storefront/internal/idempotency/postgres"
	idempotencyredis "github.com/dejobratic/storefront/internal/idempotency/redis"
	inventorypostgres "github.com/dejobratic/storefront/internal/inventory/adapters/postgres"
	inventoryapp "github.com/dejobratic/storefront/internal/inventory/app"
	"github.com/dejobratic/storefront/internal/kafka"
	ordersadapters "github.com/dejobratic/storefront/internal/orders/adapters"
	ordershttp "github.com/dejobratic/storefront/internal/orders/adapters/http"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/storefront/internal/orders/app"
	ordersmetrics "github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	paymentspostgres "github.com/dejobratic/storefront/internal/payments/adapters/postgres"
	"github.com/dejobratic/storefront/internal/payments/adapters/provider"
	"github.com/dejobratic/storefront/internal/telemetry"
)

const (
	rateLimitSweep   = time.Minute
	rateLimitIdle    = 10 * time.Minute
	idempotencySweep = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stdout, telemetry.ParseLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var telOpts []telemetry.Option
	if cfg.Telemetry.OTelEndpoint == "" {
		logger.Info("no otlp endpoint configured, telemetry is not exported")
		telOpts = append(telOpts,
			telemetry.WithTraceExporter(telemetry.DiscardSpans()),
			telemetry.WithMetricExporter(telemetry.DiscardMetrics()),
		)
	}
	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		Insecure:       cfg.Telemetry.OTelInsecure,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
		MetricInterval: cfg.Telemetry.MetricInterval,
	}, telOpts...)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()
	meter := otel.Meter(cfg.Service.Name)

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		version, err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath)
		if err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed successfully", "version", version)
	}

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create database metrics", "error", err)
		os.Exit(1)
	}
	if err := dbMetrics.ObservePool(pool); err != nil {
		logger.Error("failed to observe database pool", "error", err)
		os.Exit(1)
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create kafka metrics", "error", err)
		os.Exit(1)
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}
	checkoutMetrics, err := checkoutmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics, err := httpapi.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	alerter, flushAlerts, err := newAlerter(cfg, logger, registry)
	if err != nil {
		logger.Error("failed to configure alerting", "error", err)
		os.Exit(1)
	}
	defer flushAlerts()

	eventBus, closeEvents := newEventBus(cfg, logger, kafkaMetrics)
	defer closeEvents()

	pingers := map[string]httpapi.Pinger{
		"database": func(ctx context.Context) error { return database.CheckHealth(ctx, pool) },
		"schema":   func(ctx context.Context) error { return database.CheckSchema(ctx, pool) },
	}
	idemStore, closeIdem, err := newIdempotencyStore(ctx, cfg, pool, logger, pingers)
	if err != nil {
		logger.Error("failed to configure idempotency store", "error", err)
		os.Exit(1)
	}
	defer closeIdem()

	products := inventorypostgres.NewRepository(pool)
	catalog := ordersadapters.NewInventoryCatalog(inventoryapp.NewCatalog(products))
	orderRepo := ordersadapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics)
	ledger := ordersapp.NewLedger(orderRepo, catalog, eventBus, logger, orderMetrics)

	coupons := couponsapp.NewValidator(couponspostgres.NewRepository(pool), logger)
	gateway := provider.NewClient(provider.Config{
		BaseURL:   cfg.Payment.APIBaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	})

	orchestrator := checkoutapp.NewOrchestrator(checkoutapp.Dependencies{
		Gateway:         gateway,
		Intents:         paymentspostgres.NewRepository(pool),
		Ledger:          ledger,
		Stock:           inventoryapp.NewAdjuster(products, logger),
		Coupons:         coupons,
		Reconciliations: checkoutpostgres.NewStore(pool),
		Events:          eventBus,
		Alerter:         alerter,
	}, cfg.Payment.Currency, logger, checkoutMetrics)

	limiter := httpapi.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, auth.KeyFunc)
	go limiter.Run(ctx, rateLimitSweep, rateLimitIdle)
	idempotent := idempotency.Middleware(idemStore, logger)

	mux := http.NewServeMux()
	httpapi.RegisterHealth(mux, pingers)
	mux.Handle("GET "+cfg.HTTP.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	ordershttp.NewHandler(ledger).Register(mux, idempotent)
	checkouthttp.NewHandler(orchestrator).Register(mux, limiter.Middleware, idempotent)
	couponshttp.NewHandler(coupons).Register(mux)

	resolver := auth.NewResolver(auth.Secrets{
		Customer: []byte(cfg.Session.CustomerSecret),
		Admin:    []byte(cfg.Session.AdminSecret),
	})
	// The resolver copies the request; everything after it shares the
	// request the mux stamps with its route pattern.
	handler := httpapi.Chain(mux,
		resolver.Middleware,
		httpapi.WithRecovery(logger),
		httpapi.WithLogging(logger),
		httpapi.WithMetrics(httpMetrics),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

// newAlerter always logs alerts and counts them on the prometheus registry;
// sentry is added when a DSN is configured. The returned func flushes
// buffered sentry events.
func newAlerter(cfg *config.Config, logger *slog.Logger, registry prometheus.Registerer) (alerting.Alerter, func(), error) {
	counter, err := alerting.NewPrometheusAlerter(registry)
	if err != nil {
		return nil, nil, err
	}
	sinks := alerting.Multi{alerting.NewLogAlerter(logger), counter}
	flush := func() {}

	if cfg.Alerting.SentryDSN != "" {
		hub, err := alerting.NewSentryHub(cfg.Alerting.SentryDSN, cfg.Service.Environment, cfg.Service.Version)
		if err != nil {
			return nil, nil, err
		}
		sentryAlerter := alerting.NewSentryAlerter(hub)
		sinks = append(sinks, sentryAlerter)
		flush = func() { sentryAlerter.Flush(2 * time.Second) }
	}
	return sinks, flush, nil
}

func newEventBus(cfg *config.Config, logger *slog.Logger, metrics *kafka.Metrics) (ports.EventBus, func()) {
	client := kafka.NewClient(cfg.Kafka.Brokers)
	if !client.Enabled() {
		logger.Info("no kafka brokers configured, events are logged only")
		return kafka.NewNoopEventBus(logger), func() {}
	}

	bus := kafka.NewEventBus(client)
	closeBus := func() {
		if err := bus.Close(); err != nil {
			logger.Error("failed to close kafka writers", "error", err)
		}
	}
	return ordersadapters.NewObservableEventBus(bus, metrics), closeBus
}

// newIdempotencyStore builds the configured backend and registers its
// readiness check. The postgres backend is purged in the background. The
// returned func releases the backend's client.
func newIdempotencyStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger, pingers map[string]httpapi.Pinger) (idempotency.Store, func(), error) {
	ttl := cfg.Idempotency.TTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}

	switch cfg.Idempotency.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeClient := func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}
		store := idempotencyredis.NewStore(client, ttl)
		if err := store.Ping(ctx); err != nil {
			closeClient()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		pingers["redis"] = store.Ping
		return store, closeClient, nil
	case "memory":
		return idempotencymemory.NewStore(ttl), func() {}, nil
	case "postgres":
		store := idempotencypostgres.NewStore(pool, ttl)
		go purgeIdempotencyKeys(ctx, store, logger)
		return store, func() {}, nil
	default:
		return nil, nil, config.ErrUnknownIdempotency
	}
}

func purgeIdempotencyKeys(ctx context.Context, store *idempotencypostgres.Store, logger *slog.Logger) {
	ticker := time.NewTicker(idempotencySweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to purge idempotency keys", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "purged expired idempotency keys", "count", n)
			}
		}
	}
}
