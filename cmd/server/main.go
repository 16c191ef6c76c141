package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/erp/fulfillment/internal/application/event"
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/cache"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/erp/fulfillment/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = baseLog.Sync()
	}()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so every later component reports through it
	providers, err := telemetry.Setup(rootCtx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			baseLog.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log := providers.BridgeLogger(baseLog)

	log.Info("Starting fulfillment service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver))

	// Postgres schemas are owned by cmd/migrate; a SQLite file is built in place
	if db.Driver == config.DriverSQLite {
		if err := db.DB.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatal("Failed to build SQLite schema", zap.Error(err))
		}
	}

	meter := providers.Meter("erp-fulfillment")
	dbInstr, err := telemetry.InstrumentDB(db.DB, meter, telemetry.DBConfigFrom(cfg.Telemetry, db.Driver), log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	dbInstr.StartPoolStatsCollection(rootCtx)
	defer dbInstr.Stop()

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.Enabled() {
		providers.EnableSpanProfiles()
	}

	fulfillmentMetrics, err := telemetry.NewFulfillmentMetrics(telemetry.FulfillmentMetricsConfig{
		Meter:         meter,
		Logger:        log,
		StockProvider: telemetry.NewGormStockMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create fulfillment metrics", zap.Error(err))
	}
	fulfillmentMetrics.StartPeriodicCollection(rootCtx, 0)
	defer fulfillmentMetrics.Stop()

	// Idempotency store shared by the HTTP middleware and event handlers
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore(cfg.Idempotency.Backend)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Repositories
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	availabilityRepo := persistence.NewGormAvailabilityRepository(db.DB)
	journalRepo := persistence.NewGormInventoryTransactionRepository(db.DB)
	itemRepo := persistence.NewGormItemRepository(db.DB)
	ruleRepo := persistence.NewGormFreeItemRuleRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Events are written to the outbox inside each unit of work and relayed
	// to the bus after commit
	eventSerializer := event.NewEventSerializer()
	event.RegisterFulfillmentEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	txScope := persistence.NewGormTransactionScope(db.DB, outboxPublisher,
		persistence.WithLockTimeout(cfg.Ledger.LockTimeout),
	)

	eventBus := event.NewInMemoryEventBus(log)
	handlerIdempotency := shared.IdempotencyConfig{
		Enabled: cfg.Idempotency.Enabled,
		TTL:     cfg.Idempotency.TTL,
	}
	subscribe := func(h shared.EventHandler) {
		eventBus.Subscribe(event.NewIdempotentHandler(h, idempotencyStore, handlerIdempotency, log), h.EventTypes()...)
	}
	subscribe(eventapp.NewReorderAlertHandler(availabilityRepo, eventapp.NewLoggingReorderNotifier(log), log))
	subscribe(eventapp.NewDocumentActivityHandler(log))

	if cfg.Event.ProcessorEnabled {
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  cfg.Event.CleanupInterval,
		}, log)
		if err := outboxProcessor.Start(rootCtx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", cfg.Event.BatchSize),
			zap.Duration("poll_interval", cfg.Event.PollInterval),
		)
	}

	// Application services
	retry := salesapp.RetryConfig{
		MaxRetries:   cfg.Ledger.MaxRetries,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	}
	ledger := salesapp.NewLedger(salesapp.LedgerConfig{EnforceAvailability: cfg.Ledger.EnforceAvailability}, log)
	ledger.SetMetrics(fulfillmentMetrics)
	freeItems := salesapp.NewFreeItemEngine(log)
	tracker := salesapp.NewFulfillmentTracker(log)

	documentService := salesapp.NewDocumentService(documentRepo, txScope, ledger, freeItems, tracker, retry, log)
	documentService.SetMetrics(fulfillmentMetrics)
	conversionService := salesapp.NewConversionService(documentRepo, txScope, ledger, freeItems, tracker, retry, log)
	conversionService.SetMetrics(fulfillmentMetrics)
	availabilityService := salesapp.NewAvailabilityService(availabilityRepo, journalRepo, txScope, retry, log)
	availabilityService.SetMetrics(fulfillmentMetrics)
	ruleService := salesapp.NewRuleService(ruleRepo, itemRepo, log)
	itemService := salesapp.NewItemService(itemRepo)
	historyService := eventapp.NewHistoryService(outboxRepo, log)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var httpIdempotency shared.IdempotencyStore
	if cfg.Idempotency.Enabled {
		httpIdempotency = idempotencyStore
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		Logger:           log,
		Meter:            meter,
		TracingEnabled:   cfg.Telemetry.Enabled,
		ProfilingEnabled: profiler.Enabled(),
		CORS:             cors,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		IdempotencyStore: httpIdempotency,
		IdempotencyTTL:   cfg.Idempotency.TTL,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	router.Mount(engine, router.Handlers{
		Documents:    handler.NewDocumentHandler(documentService),
		Conversions:  handler.NewConversionHandler(conversionService),
		Availability: handler.NewAvailabilityHandler(availabilityService),
		Rules:        handler.NewRuleHandler(ruleService),
		Items:        handler.NewItemHandler(itemService),
		Events:       handler.NewEventHandler(historyService),
		System: handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion,
			handler.HealthCheck{Name: "database", Check: func(context.Context) error { return db.Ping() }},
		),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
