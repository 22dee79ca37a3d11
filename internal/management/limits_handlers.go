package management

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

// Package-level logger (alternative: pass via context if middleware adds it)
var logger *zap.Logger

func init() {
	logger = zap.L().Named("management")
}

// HandleListLimits handles GET requests to list all rate-limit counters.
// Keys are salted hashes, so nothing here identifies a visitor.
func HandleListLimits(c echo.Context) error {
	store := c.Get("store").(storage.Storage)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleListLimits"))
	ctx := c.Request().Context()

	entries, err := store.ListRateLimitEntries(ctx)
	if err != nil {
		reqLogger.Error("Failed to list rate limit entries from storage", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve entries")
	}

	// Return as a simple JSON array
	return c.JSON(http.StatusOK, entries)
}

// HandleDeleteLimit handles DELETE requests to clear one rate-limit counter,
// e.g. to unblock a visitor who hit the window cap by mistake.
func HandleDeleteLimit(c echo.Context) error {
	store := c.Get("store").(storage.Storage)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleDeleteLimit"))
	ctx := c.Request().Context()

	keyParam := c.Param("key")
	key, err := url.PathUnescape(keyParam)
	if err != nil {
		reqLogger.Warn("Failed to unescape key parameter", zap.String("param", keyParam), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid key parameter encoding")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Key parameter cannot be empty")
	}

	if err := store.DeleteRateLimitEntry(ctx, key); err != nil {
		if errors.Is(err, storage.ErrRateLimitEntryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No such entry")
		}
		reqLogger.Error("Failed to delete rate limit entry from storage", zap.String("key", key), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete entry")
	}

	reqLogger.Info("Cleared rate limit entry", zap.String("key", key))
	return c.NoContent(http.StatusNoContent)
}
