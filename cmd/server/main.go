package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/finkernel/internal/application/finance"
	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/erp/finkernel/internal/infrastructure/cache"
	"github.com/erp/finkernel/internal/infrastructure/config"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/infrastructure/persistence"
	"github.com/erp/finkernel/internal/infrastructure/storage"
	"github.com/erp/finkernel/internal/infrastructure/telemetry"
	"github.com/erp/finkernel/internal/interfaces/http/handler"
	"github.com/erp/finkernel/internal/interfaces/http/middleware"
	"github.com/erp/finkernel/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

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
	defer func() { _ = log.Sync() }()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	if core := providers.LogCore(logger.ParseLevel(cfg.Log.Level)); core != nil {
		log = log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}

	profiler, err := telemetry.StartProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	log.Info("Starting finance kernel",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", providers.Enabled()),
		zap.Bool("profiling", profiler.Enabled()),
	)

	meter := providers.Meter("finkernel")
	dbPlugin, err := telemetry.NewDBPlugin(telemetry.DBConfigFrom(cfg.Telemetry), meter, log)
	if err != nil {
		log.Fatal("Failed to create database telemetry", zap.Error(err))
	}
	db, err := persistence.NewDatabase(&cfg.Database, log, dbPlugin)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	kernelMetrics, err := telemetry.NewKernelMetrics(telemetry.KernelMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		log.Fatal("Failed to create kernel metrics", zap.Error(err))
	}

	checks := map[string]handler.Pinger{"database": db}

	var idem *finance.Idempotency
	if cfg.Idempotency.Enabled {
		store, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cfg.Idempotency,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.App.Env != "production"),
		).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		if pinger, ok := store.(handler.Pinger); ok {
			checks["redis"] = pinger
		}
		idem = finance.NewIdempotency(store, shared.IdempotencyConfig{
			Enabled: true,
			TTL:     cfg.Idempotency.TTL,
		})
	}

	var archiver finance.AuditArchiver
	if cfg.AuditArchive.Enabled {
		s3Archiver, err := storage.NewS3AuditArchiver(ctx, cfg.AuditArchive, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create audit archiver", zap.Error(err))
		}
		if err := s3Archiver.EnsureBucket(ctx); err != nil {
			log.Fatal("Audit archive bucket unavailable", zap.Error(err), zap.String("bucket", s3Archiver.Bucket()))
		}
		archiver = s3Archiver
	}

	clock := shared.SystemClock{}
	ids := shared.UUIDGenerator{}
	directory := persistence.NewGormSoDDirectory(db.Guard, ids, clock)
	repos := persistence.NewFinanceRepositories(db.Guard)
	auditRepo := persistence.NewGormAuditRepository(db.Guard)

	services := finance.NewServices(kernel.Deps{
		Tx:      db,
		Policy:  sod.NewPolicy(directory, directory, directory),
		Audit:   auditRepo,
		Clock:   clock,
		IDs:     ids,
		Metrics: kernelMetrics,
	}, finance.Repositories{
		Vendors:      repos.Vendors,
		Customers:    repos.Customers,
		BankAccounts: repos.BankAccounts,
		Invoices:     repos.Invoices,
		CreditNotes:  repos.CreditNotes,
		Receipts:     repos.Receipts,
		Payments:     repos.Payments,
		Journals:     repos.Journals,
		Periods:      persistence.NewGormPeriodRepository(db.Guard),
		Audit:        auditRepo,
		Archive:      archiver,
	})

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSOrigins

	engine, err := router.NewEngine(router.Options{
		Logger:         log,
		Tracing:        middleware.TracingConfig{ServiceName: cfg.Telemetry.ServiceName, Enabled: providers.Enabled()},
		Meter:          meter,
		Profiling:      profiler.Enabled(),
		Limiter:        limiter,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS:           cors,
		Timeout:        cfg.HTTP.WriteTimeout,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		RegisterPublic(handler.NewSystemHandler(cfg.App.Name, version, checks)).
		Register(handler.NewFinanceHandlers(services, idem).Registrars()...).
		Setup()

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
