package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/scanstock/backend/internal/application/catalog"
	scanapp "github.com/scanstock/backend/internal/application/scanning"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/infrastructure/cache"
	"github.com/scanstock/backend/internal/infrastructure/camera"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/scanstock/backend/internal/infrastructure/decoder"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/infrastructure/migration"
	"github.com/scanstock/backend/internal/infrastructure/persistence"
	"github.com/scanstock/backend/internal/infrastructure/preview"
	"github.com/scanstock/backend/internal/infrastructure/telemetry"
	"github.com/scanstock/backend/internal/interfaces/http/handler"
	"github.com/scanstock/backend/internal/interfaces/http/middleware"
	"github.com/scanstock/backend/internal/interfaces/http/router"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout  = 30 * time.Second
	rateLimitIdleTTL = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scanstock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}
	pipeline, err := telemetry.Start(ctx, telemetry.PipelineConfig{
		Enabled:           cfg.Telemetry.Enabled,
		Logs:              cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       serviceName,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
	}, bootLog)
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pipeline.Shutdown(shutdownCtx)
	}()

	// Tee application logs into the OTLP log pipeline
	log, err := logger.New(logCfg, pipeline.LogCore(bootLog.Level()))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting scanstock",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	meter := pipeline.Meter()

	db, err := openDatabase(cfg, log, meter)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	scanMetrics, err := telemetry.NewScanMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create scan metrics: %w", err)
	}

	// Endpoint lock: Redis when enabled, in-process otherwise
	lock, closeLock, err := cache.NewEndpointLockFactory(cfg.Redis, cache.WithLogger(log)).CreateLock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLock(); err != nil {
			log.Warn("Error closing endpoint lock", zap.Error(err))
		}
	}()

	dec, closeDecoder, err := decoder.New(cfg.Scanner.Decoder)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeDecoder()
	}()

	var hub *preview.Hub
	acquirerOpts := []scanning.AcquirerOption{scanning.WithEndpointLock(lock)}
	if cfg.Scanner.PreviewEnabled {
		hub = preview.NewHub(camera.NewPreviewEncoder(cfg.Scanner.PreviewScale, cfg.Scanner.PreviewQuality), log)
		defer hub.Close()
		// Preview follows the station camera; scans against other endpoints are not streamed
		acquirerOpts = append(acquirerOpts, scanning.WithFrameObserver(hub.Observer(cfg.Scanner.Endpoint)))
	}

	acquirer, err := scanning.NewAcquirer(camera.NewSource(log), dec, scanning.Policy{
		RequiredReads:     cfg.Scanner.RequiredReads,
		MaxConnectRetries: cfg.Scanner.MaxConnectRetries,
		RetryDelay:        cfg.Scanner.RetryDelay,
		MaxReadFailures:   cfg.Scanner.MaxReadFailures,
	}, acquirerOpts...)
	if err != nil {
		return fmt.Errorf("invalid scanner configuration: %w", err)
	}

	// Services
	productService := catalogapp.NewProductService(persistence.NewGormProductRepository(db.DB), scanMetrics)
	scanService := scanapp.NewScanService(
		acquirer,
		productService,
		persistence.NewGormScanRecordRepository(db.DB),
		scanMetrics,
		scanapp.ScanServiceConfig{
			DefaultEndpoint: cfg.Scanner.Endpoint,
			SessionTimeout:  cfg.Scanner.SessionTimeout,
		},
		log,
	)

	handlers := router.Handlers{
		Product: handler.NewProductHandler(productService),
		Scanner: handler.NewScannerHandler(scanService),
		System:  handler.NewSystemHandler(cfg.App.Name, version, db),
	}
	if hub != nil {
		handlers.Preview = handler.NewPreviewHandler(hub, cfg.Scanner.Endpoint, cfg.HTTP.CORSAllowOrigins)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Order matters: request ID first so every later layer can log it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, "/health", "/ready"))
	engine.Use(middleware.Tracing(serviceName, cfg.Telemetry.Enabled, "/health", "/ready")...)
	engine.Use(middleware.HTTPMetrics(meter, log))
	engine.Use(middleware.Secure())
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", handlers.System.Health)
	engine.GET("/ready", handlers.System.Ready)

	scanLimiter := middleware.NewRateLimiter(cfg.HTTP.ScanRateLimit, cfg.HTTP.ScanRateBurst, rateLimitIdleTTL)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	groups := router.RegisterAPI(r, handlers, middleware.RateLimit(scanLimiter))
	r.Setup()

	for _, g := range groups {
		for _, route := range g.Routes(r.BasePath()) {
			log.Debug("Route registered",
				zap.String("group", g.Name()),
				zap.String("method", route.Method),
				zap.String("path", route.Path),
				zap.String("description", route.Description),
			)
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Viewers hold websocket connections open; close the hub so Shutdown can drain
		if hub != nil {
			hub.Close()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited")
	return nil
}

// openDatabase connects, instruments and migrates the inventory store
func openDatabase(cfg *config.Config, log *zap.Logger, meter metric.Meter) (*persistence.Database, error) {
	dbCfg := telemetry.DBConfig{
		Trace:      cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		SlowAfter:  cfg.Telemetry.DBSlowQueryThresh,
		System:     "postgresql",
	}
	if cfg.Database.Driver == config.DriverSQLite {
		dbCfg.System = "sqlite"
	}
	plugins, err := telemetry.DBPlugins(meter, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instrument database: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithPlugins(plugins...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	if sqlDB, err := db.DB.DB(); err == nil {
		if _, err := telemetry.RegisterPoolMetrics(meter, sqlDB); err != nil {
			log.Warn("Pool metrics unavailable", zap.Error(err))
		}
	}

	if err := migrateSchema(db, cfg, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrateSchema applies the embedded postgres migrations, or AutoMigrate for sqlite
func migrateSchema(db *persistence.Database, cfg *config.Config, log *zap.Logger) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	if db.Driver() != config.DriverPostgres {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	m, err := migration.New(sqlDB, "", log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared connection pool
	if err := m.Up(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	v, dirty, err := m.Version()
	if err == nil {
		log.Info("Schema migrated", zap.Uint("version", v), zap.Bool("dirty", dirty))
	}
	return nil
}
