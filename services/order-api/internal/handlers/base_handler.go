package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type BaseHandler struct {
	logger *zap.Logger
	ping   Pinger
}

func NewBaseHandler(logger *zap.Logger, ping Pinger) *BaseHandler {
	return &BaseHandler{logger: logger, ping: ping}
}

func (b *BaseHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", b.GetHealth)
	r.GET("/ready", b.GetReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (b *BaseHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GetReady fails while the database is unreachable so the pod is taken out of rotation.
func (b *BaseHandler) GetReady(c *gin.Context) {
	if b.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := b.ping(ctx); err != nil {
			b.logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// respondError writes err in the shared error envelope.
func respondError(c *gin.Context, logger *zap.Logger, traceID string, err error) {
	resp := pkg.ToErrorResponse(logger, traceID, err)
	c.JSON(resp.Status, resp)
}
