package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nimeshabuddhika/book-order-payments/pkg"
	"go.uber.org/zap"
)

const (
	AdminRole     = "admin"
	AdminSubject  = "admin_subject"
	bearerPrefix  = "Bearer "
	roleClaimName = "role"
)

// AdminAuth guards admin routes with an HS256 bearer token carrying role=admin.
func AdminAuth(logger *zap.Logger, secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		traceID := c.GetString(pkg.TraceId)
		if len(key) == 0 {
			abort(c, logger, traceID, pkg.NewAppError(pkg.ErrForbiddenCode, "admin access is not configured", nil))
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			abort(c, logger, traceID, pkg.NewAppError(pkg.ErrUnauthorizedCode, "missing bearer token", nil))
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(strings.TrimPrefix(header, bearerPrefix), claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil {
			abort(c, logger, traceID, pkg.NewAppError(pkg.ErrUnauthorizedCode, "invalid token", err))
			return
		}
		if role, _ := claims[roleClaimName].(string); role != AdminRole {
			abort(c, logger, traceID, pkg.NewAppError(pkg.ErrForbiddenCode, "admin role required", errors.New("role="+role)))
			return
		}
		subject, _ := claims.GetSubject()
		c.Set(AdminSubject, subject)
		c.Next()
	}
}

func abort(c *gin.Context, logger *zap.Logger, traceID string, err error) {
	resp := pkg.ToErrorResponse(logger, traceID, err)
	c.AbortWithStatusJSON(resp.Status, resp)
}
