package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Port          string `mapstructure:"PORT" validate:"required"`
	PrimaryDbAddr string `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr string `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons     int32  `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons     int32  `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1"`

	// Order events are logged instead of published when no brokers are set.
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderEventTopic string        `mapstructure:"KAFKA_ORDER_EVENT_TOPIC" validate:"required"`
	KafkaPartition       uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaEventRetention  time.Duration `mapstructure:"KAFKA_EVENT_RETENTION" validate:"required"`
	NotifyTimeout        time.Duration `mapstructure:"NOTIFY_TIMEOUT" validate:"required"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	FlwBaseURL         string        `mapstructure:"FLW_BASE_URL" validate:"required,url"`
	FlwSecretKey       string        `mapstructure:"FLW_SECRET_KEY" validate:"required"`
	FlwWebhookHash     string        `mapstructure:"FLW_WEBHOOK_HASH"`
	FlwVerifyTimeout   time.Duration `mapstructure:"FLW_VERIFY_TIMEOUT" validate:"required"`
	FlwRateLimitPerSec int           `mapstructure:"FLW_RATE_LIMIT_PER_SEC" validate:"min=0"`
	FlwRateLimitBurst  int           `mapstructure:"FLW_RATE_LIMIT_BURST" validate:"min=0"`

	OrderCurrency string `mapstructure:"ORDER_CURRENCY" validate:"required,len=3"`
	MarkupRate    string `mapstructure:"MARKUP_RATE" validate:"required,numeric"`

	AdminJwtSecret string `mapstructure:"ADMIN_JWT_SECRET"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("KAFKA_ORDER_EVENT_TOPIC", "bba.order-events")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_EVENT_RETENTION", "168h")
	viper.SetDefault("NOTIFY_TIMEOUT", "5s")
	viper.SetDefault("FLW_BASE_URL", "https://api.flutterwave.com/v3")
	viper.SetDefault("FLW_VERIFY_TIMEOUT", "20s")
	viper.SetDefault("FLW_RATE_LIMIT_PER_SEC", "10")
	viper.SetDefault("FLW_RATE_LIMIT_BURST", "10")
	viper.SetDefault("ORDER_CURRENCY", "UGX")
	viper.SetDefault("MARKUP_RATE", "0.15")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running in test mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running in development mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/order-api/configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
