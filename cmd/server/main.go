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
	"github.com/redis/go-redis/v9"

	"github.com/example/order-events-service/internal/adapter/cache"
	"github.com/example/order-events-service/internal/adapter/eventlog/sqlite"
	"github.com/example/order-events-service/internal/adapter/httpapi"
	"github.com/example/order-events-service/internal/adapter/kafka"
	"github.com/example/order-events-service/internal/adapter/membus"
	"github.com/example/order-events-service/internal/adapter/memstore"
	"github.com/example/order-events-service/internal/adapter/natsstan"
	"github.com/example/order-events-service/internal/adapter/repo"
	"github.com/example/order-events-service/internal/config"
	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
	"github.com/example/order-events-service/internal/telemetry"
	"github.com/example/order-events-service/internal/usecase"
)

const serviceName = "order-api"

// App — собранный процесс: HTTP-обработчик и ресурсы для закрытия.
type App struct {
	Handler http.Handler
	closers []func() error
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close resource", "error", err)
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.InitLogger(cfg.OtelServiceName)

	if cfg.OtelEnabled {
		shutdown, err := telemetry.SetupTracer(ctx, cfg.OtelServiceName, cfg.OtelEndpoint)
		if err != nil {
			logger.Error("setup tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = shutdown(sctx)
		}()
	}
	metrics.Init()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("http listening", "addr", srv.Addr, "transport", cfg.EventTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	var (
		catalog domain.CatalogLookup
		store   domain.OrderStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("db connect: %w", err))
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			return fail(fmt.Errorf("init schema: %w", err))
		}
		catalog, store = repo.NewPostgresCatalog(pool), repo.NewPostgresOrderRepo(pool)
	} else {
		mc := memstore.NewCatalog()
		if cfg.CatalogSeedFile != "" {
			var err error
			if mc, err = memstore.LoadCatalogFile(cfg.CatalogSeedFile); err != nil {
				return fail(err)
			}
		}
		logger.Warn("DATABASE_URL not set, orders are kept in memory")
		catalog, store = mc, memstore.NewOrders()
	}

	if cfg.CatalogCacheTTL > 0 {
		var itemCache cache.ItemCache = cache.NewMemoryItemCache(cfg.CatalogCacheTTL)
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			app.closers = append(app.closers, client.Close)
			itemCache = cache.NewRedisItemCache(client, serviceName, cfg.CatalogCacheTTL)
		}
		catalog = cache.CachedCatalog{Source: catalog, Cache: itemCache, Logger: logger}
	}

	var (
		publisher domain.EventPublisher
		events    domain.EventLog
	)
	switch cfg.EventTransport {
	case config.TransportStan:
		p, err := natsstan.NewPublisher(cfg.StanClusterID, cfg.StanClientID, cfg.NatsURL, cfg.StanSubject)
		if err != nil {
			return fail(err)
		}
		app.closers = append(app.closers, p.Close)
		publisher = p
	case config.TransportKafka:
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		app.closers = append(app.closers, p.Close)
		publisher = p
	case config.TransportMemory:
		log, err := sqlite.Open(cfg.EventsDBPath)
		if err != nil {
			return fail(err)
		}
		app.closers = append(app.closers, log.Close)
		bus := membus.New()
		bus.RedeliveryDelay = time.Second
		bus.MaxAttempts = cfg.IngestMaxAttempts
		bus.Logger = logger
		ingest := usecase.IngestEvents{
			Log:         log,
			Clock:       usecase.NewMonotonicClock(nil),
			Concurrency: cfg.IngestConcurrency,
			Timeout:     cfg.CallTimeout,
			Logger:      logger,
		}
		if err := bus.Subscribe(ctx, ingest.HandleBatch); err != nil {
			return fail(err)
		}
		publisher, events = bus, log
	default:
		publisher = usecase.NoopPublisher{}
	}

	create := usecase.CreateOrder{Catalog: catalog, Store: store, Publisher: publisher, Timeout: cfg.CallTimeout, Logger: logger}
	cancel := usecase.CancelOrder{Store: store, Publisher: publisher, Timeout: cfg.CallTimeout, Logger: logger}
	get := usecase.GetOrders{Store: store, Timeout: cfg.CallTimeout}

	srv := httpapi.NewServer(cfg.OtelServiceName, create, cancel, get, events)
	srv.Logger = logger
	app.Handler = srv.Router
	return app, nil
}
