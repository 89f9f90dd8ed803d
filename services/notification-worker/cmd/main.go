package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/services/notification-worker/configs"
	"github.com/nimeshabuddhika/book-order-payments/services/notification-worker/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// main initializes and runs the notification worker service.
func main() {
	// Initialize global logger with default configuration
	pkg.InitLogger("notification-worker")
	logger := pkg.Logger
	defer func() { _ = logger.Sync() }()

	// Load configuration from environment and optional config file
	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	// Create a context that can be canceled for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mailer services.Mailer
	if cfg.SendGridApiKey == "" {
		logger.Warn("sendgrid_not_configured_emails_will_be_logged")
		mailer = services.NewLogMailer(logger)
	} else {
		mailer = services.NewSendGridMailer(cfg.SendGridApiKey, cfg.EmailFrom, cfg.EmailFromName)
	}

	notifications := services.NewNotificationService(services.NotificationServiceConfig{
		Logger:      logger,
		Mailer:      mailer,
		Composer:    services.Composer{SupplierEmail: cfg.SupplierEmail, AdminEmail: cfg.AdminEmail},
		MaxAttempts: cfg.MaxSendRetry,
		BaseBackoff: cfg.RetryBaseBackoff,
		MaxBackoff:  cfg.MaxRetryBackoff,
		SendTimeout: cfg.SendTimeout,
	})

	// Set up Kafka order event consumer
	eventHandler, err := services.NewKafkaEventConsumer(&services.KafkaEventConfig{
		Context:       ctx,
		Logger:        logger,
		Config:        cfg,
		Notifications: notifications,
	})
	if err != nil {
		logger.Fatal("failed_to_create_consumer", zap.Error(err))
	}
	closeConsumer, err := eventHandler.Start()
	if err != nil {
		logger.Fatal("failed_to_start_consumer", zap.Error(err))
	}

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics_server_started", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", zap.Error(err))
		}
	}()

	// Handle graceful shutdown on SIGINT or SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	osSignal := <-sigChan
	logger.Info("received_shutdown_signal", zap.String("signal", osSignal.String()))
	cancel() // Trigger context cancellation
	closeConsumer()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("service_shutdown_completed")
}
