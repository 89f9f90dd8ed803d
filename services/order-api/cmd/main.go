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
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/app"
	"go.uber.org/zap"
)

// @title         Book order payments API
// @version       1.0
// @BasePath      /api/v1
// @securityDefinitions.apikey BearerAuth
// @in            header
// @name          Authorization
func main() {
	// Initialize logger
	pkg.InitLogger("order-api")
	logger := pkg.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, cleanup, err := app.NewApp(ctx, logger)
	if err != nil {
		logger.Fatal("failed to start order api", zap.Error(err))
	}

	// Start a server in goroutine to allow signal handling
	go func() {
		logger.Info("Order API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Handle shutdown signals (SIGINT, SIGTERM) for a K8s pod termination grace period
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	// In-flight verifications may wait on the provider, so drain for longer than one call.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	cancel()
	cleanup()

	_ = logger.Sync()
}
