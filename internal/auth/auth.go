package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var logger *zap.Logger

func init() {
	logger = zap.L().With(zap.String("package", "auth"))
}

// APIKeyAuthMiddleware guards the management API with a single static key
// carried in the X-API-Key header. An empty configured key disables the
// surface entirely.
func APIKeyAuthMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return echo.NewHTTPError(http.StatusNotFound, "Management API disabled")
			}
			presented := c.Request().Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(presented)) != 1 {
				logger.Warn("management API key rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
			}
			return next(c)
		}
	}
}
