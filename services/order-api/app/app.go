package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/nimeshabuddhika/book-order-payments/pkg/cache"
	"github.com/nimeshabuddhika/book-order-payments/pkg/database"
	"github.com/nimeshabuddhika/book-order-payments/pkg/flutterwave"
	middleware "github.com/nimeshabuddhika/book-order-payments/pkg/middlewares"
	"github.com/nimeshabuddhika/book-order-payments/pkg/notify"
	"github.com/nimeshabuddhika/book-order-payments/pkg/pricing"
	"github.com/nimeshabuddhika/book-order-payments/pkg/repositories"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/configs"
	_ "github.com/nimeshabuddhika/book-order-payments/services/order-api/docs"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/handlers"
	"github.com/nimeshabuddhika/book-order-payments/services/order-api/internal/services"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Dependencies is the wired service graph shared by the HTTP server and the admin CLI.
type Dependencies struct {
	Config     *configs.Config
	DB         *database.DB
	Orders     services.OrderService
	Reconciler services.ReconcileService
}

// Build loads configuration, migrates the schema and wires every service.
// The returned cleanup func closes all pools and producers in reverse order.
func Build(ctx context.Context, logger *zap.Logger) (*Dependencies, func(), error) {
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}
	markupRate, err := pricing.ParseRate(cfg.MarkupRate)
	if err != nil {
		return nil, nil, fmt.Errorf("APP_MARKUP_RATE: %w", err)
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	}
	if cfg.ReplicaDbAddr != "" {
		dbConfig.ReplicaDSNs = []string{cfg.ReplicaDbAddr}
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){disconnect}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Run migrations on primary
	if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		cleanup()
		return nil, nil, err
	}

	redisClient, closeRedis, err := cache.NewOptional(ctx, logger, cache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	closers = append(closers, closeRedis)
	limiter := pkg.NewDistributedLimiter(redisClient, "flw:verify_rate", cfg.FlwRateLimitPerSec, cfg.FlwRateLimitBurst, time.Second, logger)

	notifier, err := newNotifier(ctx, logger, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	dispatcher := notify.NewDispatcher(logger, notifier, cfg.NotifyTimeout)
	closers = append(closers, dispatcher.Close)

	verifier := flutterwave.NewClient(flutterwave.ClientConfig{
		Logger:    logger,
		BaseURL:   cfg.FlwBaseURL,
		SecretKey: cfg.FlwSecretKey,
		Timeout:   cfg.FlwVerifyTimeout,
	})

	orderRepo := repositories.NewOrderRepository()
	verificationRepo := repositories.NewVerificationRepository()

	deps := &Dependencies{
		Config: cfg,
		DB:     db,
		Orders: services.NewOrderService(services.OrderServiceConfig{
			Logger:           logger,
			DB:               db,
			OrderRepo:        orderRepo,
			VerificationRepo: verificationRepo,
			Dispatcher:       dispatcher,
			Currency:         cfg.OrderCurrency,
			MarkupRate:       markupRate,
		}),
		Reconciler: services.NewReconcileService(services.ReconcileServiceConfig{
			Logger:           logger,
			DB:               db,
			OrderRepo:        orderRepo,
			VerificationRepo: verificationRepo,
			Verifier:         verifier,
			Limiter:          limiter,
			Dispatcher:       dispatcher,
		}),
	}
	return deps, cleanup, nil
}

// newNotifier publishes to Kafka when brokers are configured and logs events otherwise.
func newNotifier(ctx context.Context, logger *zap.Logger, cfg *configs.Config) (notify.Notifier, error) {
	if cfg.KafkaBrokers == "" {
		logger.Warn("Kafka not configured; order events are only logged")
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewKafkaNotifier(notify.KafkaNotifierConfig{
		Context:    ctx,
		Logger:     logger,
		Brokers:    cfg.KafkaBrokers,
		Topic:      cfg.KafkaOrderEventTopic,
		Partitions: cfg.KafkaPartition,
		Retention:  cfg.KafkaEventRetention,
	})
}

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	deps, cleanup, err := Build(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	cfg := deps.Config
	if cfg.FlwWebhookHash == "" {
		logger.Warn("APP_FLW_WEBHOOK_HASH not set; webhook deliveries will be rejected")
	}
	if cfg.AdminJwtSecret == "" {
		logger.Warn("APP_ADMIN_JWT_SECRET not set; admin routes are disabled")
	}

	baseHandler := handlers.NewBaseHandler(logger, deps.DB.Ping)
	orderHandler := handlers.NewOrderHandler(logger, deps.Orders)
	paymentHandler := handlers.NewPaymentHandler(logger, deps.Reconciler, cfg.FlwWebhookHash)
	adminHandler := handlers.NewAdminHandler(logger, deps.Orders, deps.Reconciler, middleware.AdminAuth(logger, cfg.AdminJwtSecret))

	// Router
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.TraceID(logger))
	api.Use(middleware.Metrics())

	orderHandler.RegisterRoutes(api)
	paymentHandler.RegisterRoutes(api)
	adminHandler.RegisterRoutes(api)
	baseHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Verification waits on the provider for up to FlwVerifyTimeout.
		WriteTimeout: cfg.FlwVerifyTimeout + 10*time.Second,
	}

	return srv, cleanup, nil
}
