// Package session issues the per-visitor CSRF token and math captcha and
// persists the expected answers. Sessions ride a cookie so the gate can look
// the challenge back up on submission.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/SyntaxSidekick/contactgate/internal/config"
	"github.com/SyntaxSidekick/contactgate/internal/model"
	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

// CookieName carries the session identifier between the challenge endpoint
// and the submission gate.
const CookieName = "contactgate_sid"

type challengeResponse struct {
	CSRF            string `json:"csrf"`
	CaptchaQuestion string `json:"captchaQuestion"`
}

// Issue creates or refreshes the challenge for sessionID. A new CSRF token is
// generated on every call, so re-issuing invalidates any token held by a form
// still open in another tab. The captcha answer stays valid for the whole
// session lifetime; it is compared on submission, not consumed.
func Issue(sess *model.Session, now time.Time, ttl time.Duration) (question string, err error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("session: failed to generate csrf token: %w", err)
	}
	a, err := randomDigit()
	if err != nil {
		return "", err
	}
	b, err := randomDigit()
	if err != nil {
		return "", err
	}

	sess.CSRFToken = hex.EncodeToString(token)
	sess.CaptchaSum = a + b
	sess.CreatedAt = now.UTC()
	sess.ExpiresAt = now.UTC().Add(ttl)
	return fmt.Sprintf("What is %d + %d?", a, b), nil
}

// randomDigit returns a crypto-random integer in [1,9].
func randomDigit() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return 0, fmt.Errorf("session: failed to generate captcha digit: %w", err)
	}
	return int(n.Int64()) + 1, nil
}

// HandleIssueChallenge handles GET requests for a fresh CSRF token and
// captcha question. The expected sum never leaves the server.
func HandleIssueChallenge(c echo.Context) error {
	store := c.Get("store").(storage.Storage)
	cfg := c.Get("cfg").(*config.Config)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleIssueChallenge"))
	ctx := c.Request().Context()

	sess := &model.Session{}
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		sess.ID = cookie.Value
	} else {
		sess.ID = uuid.NewString()
	}

	now := time.Now()
	ttl := time.Duration(cfg.SessionTTLSeconds) * time.Second
	question, err := Issue(sess, now, ttl)
	if err != nil {
		reqLogger.Error("Failed to issue challenge", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue challenge")
	}
	if err := store.SaveSession(ctx, sess); err != nil {
		reqLogger.Error("Failed to persist session", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue challenge")
	}

	// Opportunistic cleanup; expired sessions are also rejected on read.
	if _, err := store.DeleteExpiredSessions(ctx, now); err != nil {
		reqLogger.Warn("Failed to prune expired sessions", zap.Error(err))
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, challengeResponse{
		CSRF:            sess.CSRFToken,
		CaptchaQuestion: question,
	})
}
