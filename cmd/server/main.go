package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared/service"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 30 * time.Second
	migrationsPath  = "migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Telemetry; a disabled config leaves the otel no-op globals in place
	otelProviders, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		Endpoint:        cfg.Telemetry.CollectorEndpoint,
		Insecure:        cfg.Telemetry.Insecure,
		ServiceName:     cfg.Telemetry.ServiceName,
		SamplingRatio:   cfg.Telemetry.SamplingRatio,
		MetricsInterval: cfg.Telemetry.MetricsInterval,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := otelProviders.BridgeLogger(baseLog, logger.ParseLevel(cfg.Log.Level))
	defer logger.Sync(log)

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Database
	gormLog := logger.NewSQLLogger(log, logger.SQLLogConfig{
		Level:         logger.GormLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		FullSQL:       cfg.Telemetry.DBLogFullSQL,
	})
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	if err := telemetry.NewDBTracer(telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		SlowQuery:  cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:   dbSystem,
	}, log).Instrument(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		if err := migrateSchema(db, log); err != nil {
			log.Fatal("Failed to migrate schema", zap.Error(err))
		}
	}

	// Repositories
	historyLimit := cfg.Ledger.MovementHistoryLimit
	scope := persistence.NewGormTransactionScope(db.DB, historyLimit)
	directory := persistence.NewGormDirectory(db.DB)
	itemRepo := persistence.NewGormItemRepository(db.DB)
	batchRepo := persistence.NewGormBatchRepository(db.DB)
	locationRepo := persistence.NewGormLocationInventoryRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB, historyLimit)

	// Event bus and its subscribers
	bus := event.NewInMemoryEventBus(log, event.DefaultBusConfig())
	lowStock := inventoryapp.NewLowStockHandler(log).
		WithNotifier(inventoryapp.NewLoggingStockAlertNotifier(log))
	bus.Subscribe(lowStock, lowStock.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Ledger and services
	ledger := inventoryapp.NewLedgerService(scope, directory, inventoryapp.LedgerConfig{
		MaxRetries:   cfg.Ledger.MaxRetries,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	}, log)
	ledger.SetEventPublisher(bus)
	ledgerMetrics, err := telemetry.NewLedgerMetrics(otelProviders.Meter(telemetry.LedgerMeterName))
	if err != nil {
		log.Warn("Failed to create ledger metrics, continuing without them", zap.Error(err))
	} else {
		ledger.SetMetrics(ledgerMetrics)
	}

	batchService := inventoryapp.NewBatchService(ledger, batchRepo, itemRepo, directory)
	stockService := inventoryapp.NewStockService(ledger, scope, itemRepo, locationRepo, movementRepo, directory, historyLimit)
	transferService := inventoryapp.NewTransferService(ledger, locationRepo, batchRepo, movementRepo, directory, log)
	itemService := inventoryapp.NewItemService(itemRepo)

	// Expiry scheduler
	var locker cache.Locker
	if cfg.Expiry.DistributedLock {
		locker, err = cache.NewLockerFactory(cfg.Redis, cache.WithLogger(log)).CreateLocker()
		if err != nil {
			log.Fatal("Failed to create expiry lock", zap.Error(err))
		}
	}
	expiryScheduler := scheduler.NewExpiryScheduler(batchService, locker, log, scheduler.ExpirySchedulerConfig{
		Enabled:       cfg.Expiry.Enabled,
		CheckInterval: cfg.Expiry.CheckInterval,
		RunTimeout:    cfg.Expiry.RunTimeout,
		InitialDelay:  cfg.Expiry.InitialDelay,
		LockTTL:       cfg.Expiry.LockTTL,
	})
	if err := expiryScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start expiry scheduler", zap.Error(err))
	}

	// HTTP
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}
	engine, err := router.NewEngine(router.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		HTTP:           cfg.HTTP,
		TracingEnabled: cfg.Telemetry.Enabled,
		Meter:          otelProviders.Meter(middleware.HTTPMeterName),
		Logger:         log,
	}, router.Handlers{
		Item:       handler.NewItemHandler(itemService),
		Batch:      handler.NewBatchHandler(batchService),
		Stock:      handler.NewStockHandler(stockService),
		Transfer:   handler.NewTransferHandler(transferService),
		Conversion: handler.NewConversionHandler(service.NewUnitConversionService()),
		Expiry:     handler.NewExpiryHandler(expiryScheduler),
		Health:     handler.NewHealthHandler(sqlDB),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := expiryScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Expiry scheduler did not stop cleanly", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus did not drain", zap.Error(err))
	}
	if closer, ok := locker.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("Error closing lock client", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	_ = otelProviders.Shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

// migrateSchema applies the versioned migrations on postgres; sqlite
// databases get their tables from the gorm models
func migrateSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver == config.DriverSQLite {
		return db.DB.AutoMigrate(models.AllModels()...)
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrationsPath, log)
	if err != nil {
		return err
	}
	return m.Up()
}
