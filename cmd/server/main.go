package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"tuition/internal/app"
	"tuition/internal/config"
	"tuition/internal/handler"
	"tuition/internal/logging"
	"tuition/internal/metrics"
	"tuition/internal/middleware"
	internalRedis "tuition/internal/redis"
	"tuition/internal/repository/sqlstore"
	"tuition/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	if cfg.Database.SeedDemoData {
		if err := sqlstore.NewSeeder(db).SeedDemo(ctx); err != nil {
			logger.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		logger.Warn("redis disabled, Idempotency-Key headers are ignored")
	}

	// Wire dependencies.
	server, err := wireServer(db, redisClient, nrApp, cfg, logger)
	if err != nil {
		logger.Error("failed to wire server", "error", err)
		os.Exit(1)
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *slog.Logger) (*http.Server, error) {
	credentials, err := middleware.NewAdminCredentials(cfg.Admin)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	dialect := app.DatabaseDialect(cfg.Database)

	// Initialize services.
	notificationService := service.NewNotificationService(logger)
	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		TxManager:    sqlstore.NewStore(db, dialect),
		Ledger:       sqlstore.NewLedger(db),
		Payments:     sqlstore.NewPaymentRepository(db),
		Policy:       service.NewSurchargePolicy(cfg.Payment.SurchargeRate),
		Notification: notificationService,
		Metrics:      m,
		Logger:       logger,
	})
	studentService := service.NewStudentService(sqlstore.NewStudentRepository(db, dialect))

	deps := app.RouterDeps{
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		StudentHandler: handler.NewStudentHandler(studentService),
		Credentials:    credentials,
		Metrics:        m,
		NewRelicApp:    nrApp,
		Logger:         logger,
	}
	if redisClient != nil {
		deps.ResponseCache = internalRedis.NewCacheStore(redisClient)
		deps.LockStore = internalRedis.NewLockStore(redisClient)
	}

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
