package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	allocationapp "github.com/wms/backend/internal/application/allocation"
	inventoryapp "github.com/wms/backend/internal/application/inventory"
	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/cache"
	"github.com/wms/backend/internal/infrastructure/config"
	"github.com/wms/backend/internal/infrastructure/event"
	"github.com/wms/backend/internal/infrastructure/logger"
	"github.com/wms/backend/internal/infrastructure/persistence"
	"github.com/wms/backend/internal/infrastructure/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("starting WMS backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("error shutting down logger provider", zap.Error(err))
		}
	}()

	// Mirror log entries to the collector alongside stdout
	bridgeLevel, parseErr := zapcore.ParseLevel(cfg.Log.Level)
	if parseErr != nil {
		bridgeLevel = zapcore.InfoLevel
	}
	log = telemetry.BridgeLogger(log, loggerProvider.ZapCore(bridgeLevel))

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	log.Info("database connected")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:          cfg.Telemetry.DBTraceEnabled,
		DBName:           cfg.Database.DBName,
		WithoutVariables: true,
	}, log); err != nil {
		log.Fatal("failed to register database tracing", zap.Error(err))
	}

	// Idempotency store; fall back to the in-process store when Redis is
	// unreachable so a cache outage does not take allocations down
	var idempotencyStore shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, using in-memory idempotency store", zap.Error(err))
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
	} else {
		log.Info("redis idempotency store connected", zap.String("addr", cfg.Redis.Addr()))
		idempotencyStore = redisStore
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("error closing idempotency store", zap.Error(err))
		}
	}()

	// Event bus
	eventBus := event.NewInMemoryEventBus(log, event.Options{
		BufferSize:     cfg.Event.BufferSize,
		HandlerTimeout: cfg.Event.HandlerTimeout,
	})
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("error stopping event bus", zap.Error(err))
		}
	}()

	// Metrics instruments and the handler that feeds them from domain events
	meter := otel.Meter("wms/allocation")
	allocationMetrics, err := telemetry.NewAllocationMetrics(meter, log)
	if err != nil {
		log.Fatal("failed to create allocation metrics", zap.Error(err))
	}
	metricsHandler := allocationapp.NewMetricsHandler(allocationMetrics, log)
	eventBus.Subscribe(metricsHandler)

	// Repositories
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	orderItemRepo := persistence.NewGormOrderItemRepository(db.DB)

	// Application services
	txScope := persistence.NewGormTransactionScope(db.DB)
	allocationService := allocationapp.NewService(
		txScope,
		inventory.NewFEFOMatcher(),
		eventBus,
		idempotencyStore,
		shared.IdempotencyConfig{TTL: cfg.Allocation.IdempotencyTTL, Enabled: true},
		allocationapp.RetryPolicy{
			MaxAttempts: cfg.Allocation.MaxAttempts,
			BaseBackoff: cfg.Allocation.BaseBackoff,
			MaxBackoff:  cfg.Allocation.MaxBackoff,
		},
		log,
	)
	inventoryService := inventoryapp.NewService(ledgerRepo, batchRepo, eventBus, log)

	// New orders are allocated as soon as their creation event lands
	orderCreatedHandler := allocationapp.NewOrderCreatedHandler(allocationService, orderItemRepo, log)
	eventBus.Subscribe(orderCreatedHandler)

	log.Info("event handlers registered",
		zap.Strings("order_created_events", orderCreatedHandler.EventTypes()),
		zap.Strings("metrics_events", metricsHandler.EventTypes()),
	)

	// Periodic sweep warning about batches close to expiry
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go expirySweep(sweepCtx, inventoryService, cfg.Allocation.ExpiryWarnDays, log)

	log.Info("services initialized, waiting for shutdown signal")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info("shutting down", zap.String("signal", sig.String()))
}

// expirySweep periodically reports active batches that expire within the
// configured window so operators can prioritize their allocation
func expirySweep(ctx context.Context, svc *inventoryapp.Service, warnDays int, log *zap.Logger) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batches, err := svc.FindExpiringBatches(ctx, warnDays)
			if err != nil {
				log.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if len(batches) == 0 {
				continue
			}
			log.Warn("batches approaching expiry",
				zap.Int("count", len(batches)),
				zap.Int("within_days", warnDays),
			)
		}
	}
}
