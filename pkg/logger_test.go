package pkg

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerConfig(t *testing.T) {
	release := newLoggerConfig(gin.ReleaseMode, "")
	assert.Equal(t, "json", release.Encoding)
	assert.Equal(t, zapcore.InfoLevel, release.Level.Level())
	assert.Equal(t, "ts", release.EncoderConfig.TimeKey)

	dev := newLoggerConfig(gin.DebugMode, "")
	assert.Equal(t, "console", dev.Encoding)
	assert.Equal(t, zapcore.DebugLevel, dev.Level.Level())

	assert.Equal(t, zapcore.WarnLevel, newLoggerConfig(gin.ReleaseMode, "warn").Level.Level())
	assert.Equal(t, zapcore.InfoLevel, newLoggerConfig(gin.ReleaseMode, "loud").Level.Level())
}
