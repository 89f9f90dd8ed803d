package pkg

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel overrides the mode's default level (debug, info, warn, error).
const EnvLogLevel = "APP_LOG_LEVEL"

var Logger *zap.Logger

// InitLogger builds the global Logger for one binary. Every entry carries the service name.
func InitLogger(service string) {
	logger, err := newLoggerConfig(gin.Mode(), os.Getenv(EnvLogLevel)).Build(
		zap.AddStacktrace(zap.DPanicLevel),
		zap.Fields(zap.String(Service, service)),
	)
	if err != nil {
		panic(err)
	}
	Logger = logger
}

// newLoggerConfig emits JSON to stdout in release mode and coloured console output otherwise.
// An unparsable level keeps the mode's default.
func newLoggerConfig(mode, level string) zap.Config {
	var config zap.Config
	if mode == gin.ReleaseMode {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, err := zapcore.ParseLevel(strings.TrimSpace(level)); err == nil && level != "" {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config
}
