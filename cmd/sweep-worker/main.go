package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caresync-health/booking-platform/cmd/mainconfig"
	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/config"
	"github.com/caresync-health/booking-platform/internal/notify"
	"github.com/caresync-health/booking-platform/internal/observability/metrics"
	"github.com/caresync-health/booking-platform/internal/patients"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("sweep worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	patientStore := patients.NewStore(pool)
	notifier := notify.NewService(mainconfig.NewEmailSender(ctx, cfg, logger), patientStore, logger)

	ledger := booking.NewLedger(pool, audit.NewRecorder(), cfg.PaymentWindow, logger)
	sweeper := booking.NewSweeper(ledger, cfg.SweepInterval).
		WithMetrics(bookingMetrics).
		WithNotifier(notifier)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	logger.Info("sweep worker started",
		"interval", cfg.SweepInterval.String(),
		"payment_window", cfg.PaymentWindow.String(),
	)
	go sweeper.Run(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("sweep worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
