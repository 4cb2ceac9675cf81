package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/caresync-health/booking-platform/cmd/mainconfig"
	"github.com/caresync-health/booking-platform/internal/api/router"
	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/availability"
	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/branch"
	appconfig "github.com/caresync-health/booking-platform/internal/config"
	"github.com/caresync-health/booking-platform/internal/http/handlers"
	"github.com/caresync-health/booking-platform/internal/notify"
	"github.com/caresync-health/booking-platform/internal/observability/metrics"
	"github.com/caresync-health/booking-platform/internal/patients"
	"github.com/caresync-health/booking-platform/internal/payments"
	"github.com/caresync-health/booking-platform/internal/schedule"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Separate database/sql handle for the audit dashboard reader.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	redisClient := newRedisClient(ctx, cfg, logger)

	recorder := audit.NewRecorder()
	ledger := booking.NewLedger(pool, recorder, cfg.PaymentWindow, logger)
	scheduleStore := schedule.NewStore(pool)
	settingsStore := branch.NewStore(redisClient, cfg.DefaultTimezone)
	patientStore := patients.NewStore(pool)
	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	cache := availability.NewCache(redisClient, cfg.AvailabilityCacheTTL, logger)
	calculator := availability.NewCalculator(scheduleStore, settingsStore, ledger, cache, logger).
		WithMetrics(bookingMetrics)

	notifier := notify.NewService(mainconfig.NewEmailSender(ctx, cfg, logger), patientStore, logger)
	gateway := payments.NewFakeGateway(cfg.PaymentsBaseURL, logger)

	service := booking.NewService(booking.ServiceConfig{
		Ledger:    ledger,
		Schedules: scheduleStore,
		Settings:  settingsStore,
		Cache:     cache,
		Notifier:  notifier,
		Gateway:   gateway,
		Metrics:   bookingMetrics,
		Logger:    logger,
	})

	r := router.New(&router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(calculator, logger),
		Bookings:           handlers.NewBookingsHandler(service, logger),
		Payments:           handlers.NewPaymentsHandler(service, logger),
		Patients:           handlers.NewPatientsHandler(patientStore, logger),
		Audit:              handlers.NewAuditHandler(audit.NewReader(auditDB), logger),
		MetricsHandler:     promhttp.Handler(),
		StaffAuthSecret:    cfg.StaffJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WriteRateLimit:     cfg.WriteRateLimit,
		WriteRateBurst:     cfg.WriteRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// newRedisClient connects to redis or returns nil, in which case branch
// settings fall back to defaults and availability reads skip the cache.
func newRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}
