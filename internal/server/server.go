package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/SyntaxSidekick/contactgate/internal/auth"
	"github.com/SyntaxSidekick/contactgate/internal/config"
	"github.com/SyntaxSidekick/contactgate/internal/gate"
	"github.com/SyntaxSidekick/contactgate/internal/mailer"
	"github.com/SyntaxSidekick/contactgate/internal/maillog"
	"github.com/SyntaxSidekick/contactgate/internal/management"
	"github.com/SyntaxSidekick/contactgate/internal/ratelimit"
	"github.com/SyntaxSidekick/contactgate/internal/session"
	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

// ApplyCommonMiddleware applies essential middleware to an Echo instance.
// It injects dependencies into the context.
func ApplyCommonMiddleware(e *echo.Echo, store storage.Storage, cfg *config.Config, deliverer mailer.Deliverer, limiter *ratelimit.Limiter, outcomes *maillog.Logger, baseLogger *zap.Logger) {
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	// Middleware to set context values
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			reqLogger := baseLogger.With(zap.String("request_id", reqID))

			c.Set("store", store)
			c.Set("cfg", cfg)
			c.Set("mailer", deliverer)
			c.Set("limiter", limiter)
			c.Set("outcomes", outcomes)
			c.Set("logger", reqLogger)
			return next(c)
		}
	})
}

// SetupRouter defines all HTTP routes for the application.
func SetupRouter(e *echo.Echo, cfg *config.Config) {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "contactgate is running")
	})

	// Challenge issuance for the contact form
	e.GET("/api/csrf", session.HandleIssueChallenge)

	// Contact submission pipeline
	e.GET("/contact/send", gate.HandleHealth)
	e.POST("/contact/send", gate.HandleSubmit)

	// Management API Endpoints
	apiGroup := e.Group("/api/v1")
	limitsGroup := apiGroup.Group("/limits")
	limitsGroup.Use(auth.APIKeyAuthMiddleware(cfg.AdminAPIKey))
	limitsGroup.GET("", management.HandleListLimits)
	limitsGroup.DELETE("/:key", management.HandleDeleteLimit)
}
