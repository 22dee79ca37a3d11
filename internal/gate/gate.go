// Package gate implements the server-side submission pipeline: a sequence of
// hard-stop checks that re-validate everything the client claims, then a
// delivery attempt. Internal failure detail never reaches the caller; the
// response vocabulary is fixed.
package gate

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tomasen/realip"
	"go.uber.org/zap"

	"github.com/SyntaxSidekick/contactgate/internal/config"
	"github.com/SyntaxSidekick/contactgate/internal/mailer"
	"github.com/SyntaxSidekick/contactgate/internal/maillog"
	"github.com/SyntaxSidekick/contactgate/internal/model"
	"github.com/SyntaxSidekick/contactgate/internal/ratelimit"
	"github.com/SyntaxSidekick/contactgate/internal/session"
	"github.com/SyntaxSidekick/contactgate/internal/storage"
	"github.com/SyntaxSidekick/contactgate/internal/validate"
)

const (
	// MsgSent is also returned for honeypot hits so bots cannot tell the
	// difference from a real send.
	MsgSent   = "Message sent successfully!"
	MsgFailed = "Oh Noes! Yous Broke It! Try Snail Mail Next Time"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields model.FieldErrors `json:"fields,omitempty"`
}

type healthResponse struct {
	OK            bool `json:"ok"`
	Configured    bool `json:"configured"`
	HasHost       bool `json:"hasHost"`
	HasCreds      bool `json:"hasCreds"`
	FromSet       bool `json:"fromSet"`
	ToSet         bool `json:"toSet"`
	MailerPresent bool `json:"mailerPresent"`
}

// HandleHealth handles GET probes against the submission endpoint. Booleans
// only; no hostnames or credentials leak here.
func HandleHealth(c echo.Context) error {
	cfg := c.Get("cfg").(*config.Config)
	deliverer := c.Get("mailer").(mailer.Deliverer)

	return c.JSON(http.StatusOK, healthResponse{
		OK:            true,
		Configured:    cfg.MailerConfigured(),
		HasHost:       cfg.SMTPHost != "",
		HasCreds:      cfg.SMTPUser != "" && cfg.SMTPPassword != "",
		FromSet:       cfg.MailFrom != "",
		ToSet:         cfg.MailTo != "",
		MailerPresent: deliverer.Configured(),
	})
}

// HandleSubmit handles contact-form POSTs. Checks run in a fixed order and
// each failure is a hard stop with its own status code.
func HandleSubmit(c echo.Context) error {
	store := c.Get("store").(storage.Storage)
	cfg := c.Get("cfg").(*config.Config)
	deliverer := c.Get("mailer").(mailer.Deliverer)
	limiter := c.Get("limiter").(*ratelimit.Limiter)
	outcomes := c.Get("outcomes").(*maillog.Logger)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleSubmit"))
	ctx := c.Request().Context()

	// Readiness before anything else; a half-configured mailer must not
	// swallow submissions.
	if !cfg.MailerConfigured() {
		reqLogger.Error("mailer not configured, rejecting submission")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Mailer not configured"})
	}

	var sub model.Submission
	if err := c.Bind(&sub); err != nil {
		reqLogger.Warn("failed to decode submission body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
	}

	// CSRF: the token must match the one issued to this visitor's session.
	sess := lookupSession(c, store)
	if sess == nil || sub.CSRF == "" ||
		subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(sub.CSRF)) != 1 {
		reqLogger.Warn("csrf check failed", zap.Bool("session_found", sess != nil))
		return c.JSON(http.StatusForbidden, errorResponse{Error: "CSRF failed"})
	}

	// Honeypot: pretend success without processing further.
	if sub.Website != "" {
		reqLogger.Info("honeypot tripped, fabricating success")
		return c.JSON(http.StatusOK, successResponse{Success: true, Message: MsgSent})
	}

	name := strings.TrimSpace(sub.Name)
	email := strings.TrimSpace(sub.Email)
	message := strings.TrimSpace(sub.Message)
	source := strings.TrimSpace(sub.Source)
	if source == "" {
		source = "contact"
	}

	fieldErrors := validate.All(name, email, message)
	if msg := validate.MessageLength(message, cfg.MaxMessageLength); msg != "" {
		fieldErrors["message"] = msg
	}
	if strings.TrimSpace(sub.CaptchaAnswer) != strconv.Itoa(sess.CaptchaSum) {
		fieldErrors["captcha"] = "Captcha incorrect"
	}
	if len(fieldErrors) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:  "Validation failed",
			Fields: fieldErrors,
		})
	}

	now := time.Now()
	ip := realip.FromRequest(c.Request())
	allowed, err := limiter.Allow(ctx, ip, now)
	if err != nil {
		// Only reachable in fail-closed mode; surfaced as rate limiting, not
		// as an internal error.
		reqLogger.Error("rate limit check failed closed", zap.Error(err))
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "Rate limit exceeded"})
	}
	if !allowed {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "Rate limit exceeded"})
	}

	outcomes.Prune(now)

	result := deliverer.Attempt(ctx, mailer.Message{
		Name:   name,
		Email:  email,
		Body:   message,
		Source: source,
		IP:     ip,
	})
	entry := model.OutcomeEntry{
		IPHash:   limiter.KeyFor(ip),
		Length:   len(message),
		Source:   source,
		Fallback: result.Fallback,
	}
	if result.Sent {
		outcomes.Success(entry)
		reqLogger.Info("message delivered",
			zap.Int("attempts", result.Attempts), zap.Bool("fallback", result.Fallback))
		return c.JSON(http.StatusOK, successResponse{Success: true, Message: MsgSent})
	}

	entry.Error = result.Err
	outcomes.Failure(entry)
	reqLogger.Error("delivery failed",
		zap.Int("attempts", result.Attempts), zap.String("transport_error", result.Err))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: MsgFailed})
}

// lookupSession resolves the challenge session from the request cookie.
// Returns nil when there is no cookie, no stored session, or it expired.
func lookupSession(c echo.Context, store storage.Storage) *model.Session {
	cookie, err := c.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := store.GetSession(c.Request().Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return sess
}
