package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/book-order-payments/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for notification-worker.
type Config struct {
	MetricsAddr          string        `mapstructure:"METRICS_ADDR" validate:"required"`
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	KafkaOrderEventTopic string        `mapstructure:"KAFKA_ORDER_EVENT_TOPIC" validate:"required"`
	KafkaConsumerGroup   string        `mapstructure:"KAFKA_CONSUMER_GROUP" validate:"required"`
	KafkaDLQTopic        string        `mapstructure:"KAFKA_DLQ_TOPIC" validate:"required"`
	KafkaDLQRetention    time.Duration `mapstructure:"KAFKA_DLQ_RETENTION" validate:"required"`
	KafkaPartition       uint32        `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	MaxConcurrentJobs    int           `mapstructure:"MAX_CONCURRENT_JOBS" validate:"min=1"`
	MaxSendRetry         int           `mapstructure:"MAX_SEND_RETRY" validate:"min=1,max=10"`
	RetryBaseBackoff     time.Duration `mapstructure:"RETRY_BASE_BACKOFF" validate:"required"`
	MaxRetryBackoff      time.Duration `mapstructure:"MAX_RETRY_BACKOFF" validate:"required"`
	SendTimeout          time.Duration `mapstructure:"SEND_TIMEOUT" validate:"required"`

	// Emails are logged and skipped when no key is set.
	SendGridApiKey string `mapstructure:"SENDGRID_API_KEY"`
	EmailFrom      string `mapstructure:"EMAIL_FROM" validate:"required,email"`
	EmailFromName  string `mapstructure:"EMAIL_FROM_NAME"`
	SupplierEmail  string `mapstructure:"SUPPLIER_EMAIL" validate:"omitempty,email"`
	AdminEmail     string `mapstructure:"ADMIN_EMAIL" validate:"omitempty,email"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("METRICS_ADDR", ":9091")
	viper.SetDefault("KAFKA_ORDER_EVENT_TOPIC", "bba.order-events")
	viper.SetDefault("KAFKA_CONSUMER_GROUP", "bba-notification-worker")
	viper.SetDefault("KAFKA_DLQ_TOPIC", "bba.order-events.dlq")
	viper.SetDefault("KAFKA_DLQ_RETENTION", "336h")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("MAX_CONCURRENT_JOBS", "8")
	viper.SetDefault("MAX_SEND_RETRY", "3")
	viper.SetDefault("RETRY_BASE_BACKOFF", "500ms")
	viper.SetDefault("MAX_RETRY_BACKOFF", "10s")
	viper.SetDefault("SEND_TIMEOUT", "10s")
	viper.SetDefault("EMAIL_FROM_NAME", "Homeschool Book Shop")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running_in_test_mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running_in_development_mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/notification-worker/configs")
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
