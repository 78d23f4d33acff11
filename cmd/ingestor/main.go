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

	"github.com/example/order-events-service/internal/adapter/eventlog/sqlite"
	"github.com/example/order-events-service/internal/adapter/httpapi"
	"github.com/example/order-events-service/internal/adapter/kafka"
	"github.com/example/order-events-service/internal/adapter/natsstan"
	"github.com/example/order-events-service/internal/config"
	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
	"github.com/example/order-events-service/internal/telemetry"
	"github.com/example/order-events-service/internal/usecase"
)

const serviceName = "order-ingestor"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.InitLogger(cfg.OtelServiceName)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ingestor stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.OtelEnabled {
		shutdown, err := telemetry.SetupTracer(ctx, cfg.OtelServiceName, cfg.OtelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = shutdown(sctx)
		}()
	}
	metrics.Init()

	eventLog, err := sqlite.Open(cfg.EventsDBPath)
	if err != nil {
		return err
	}
	defer eventLog.Close()

	sub, err := newSubscriber(cfg, logger)
	if err != nil {
		return err
	}
	ingest := usecase.IngestEvents{
		Log:         eventLog,
		Clock:       usecase.NewMonotonicClock(nil),
		Concurrency: cfg.IngestConcurrency,
		Timeout:     cfg.CallTimeout,
		Logger:      logger,
	}
	if err := sub.Subscribe(ctx, ingest.HandleBatch); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewEventsServer(cfg.OtelServiceName, eventLog).Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", srv.Addr, "transport", cfg.EventTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func newSubscriber(cfg config.Config, logger *slog.Logger) (domain.MessageSubscriber, error) {
	switch cfg.EventTransport {
	case config.TransportStan:
		return &natsstan.Subscriber{
			ClusterID:   cfg.StanClusterID,
			ClientID:    cfg.StanClientID,
			URL:         cfg.NatsURL,
			Subject:     cfg.StanSubject,
			Durable:     cfg.StanDurable,
			Timeout:     cfg.CallTimeout,
			MaxAttempts: cfg.IngestMaxAttempts,
			Logger:      logger,
		}, nil
	case config.TransportKafka:
		return &kafka.Subscriber{
			Brokers:     cfg.KafkaBrokers,
			Topic:       cfg.KafkaTopic,
			GroupID:     cfg.KafkaGroupID,
			BatchSize:   cfg.KafkaBatchSize,
			BatchWait:   cfg.KafkaBatchWait,
			MaxAttempts: cfg.IngestMaxAttempts,
			Logger:      logger,
		}, nil
	default:
		return nil, fmt.Errorf("ingestor: EVENT_TRANSPORT %q has no external subscriber", cfg.EventTransport)
	}
}
