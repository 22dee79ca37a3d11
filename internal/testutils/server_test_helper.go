// internal/testutils/server_test_helper.go
package testutils

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/SyntaxSidekick/contactgate/internal/config"
	"github.com/SyntaxSidekick/contactgate/internal/mailer"
	"github.com/SyntaxSidekick/contactgate/internal/maillog"
	"github.com/SyntaxSidekick/contactgate/internal/model"
	"github.com/SyntaxSidekick/contactgate/internal/ratelimit"
	"github.com/SyntaxSidekick/contactgate/internal/server"
	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

// SpyDeliverer records delivery attempts instead of sending mail. Result is
// returned from every Attempt call.
type SpyDeliverer struct {
	mu     sync.Mutex
	calls  []mailer.Message
	Result model.DeliveryResult
}

func (s *SpyDeliverer) Attempt(_ context.Context, msg mailer.Message) model.DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msg)
	return s.Result
}

func (s *SpyDeliverer) Configured() bool { return true }

// Calls returns a copy of the recorded delivery attempts.
func (s *SpyDeliverer) Calls() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mailer.Message, len(s.calls))
	copy(out, s.calls)
	return out
}

// TestConfig returns a fully configured Config rooted in dir, so
// MailerConfigured() passes without touching the environment.
func TestConfig(dir string) *config.Config {
	return &config.Config{
		ListenAddress:     ":0",
		DataDir:           dir,
		StorageType:       "sqlite",
		SMTPHost:          "smtp.example.com",
		SMTPPort:          465,
		SMTPUser:          "mailer",
		SMTPPassword:      "secret",
		MailFrom:          "noreply@example.com",
		MailTo:            "inbox@example.com",
		MailRetries:       1,
		MaxMessageLength:  12000,
		RateLimitMax:      5,
		RateLimitWindow:   3600,
		IPHashSalt:        "test-salt",
		SessionTTLSeconds: 3600,
		LogRetentionDays:  7,
		AdminAPIKey:       "test-admin-key",
	}
}

// SetupTestServer initializes all components needed to run the Echo app for
// testing against an on-disk SQLite database under t.TempDir(). It returns
// the Echo instance, the storage, the delivery spy, and the outcome log dir.
func SetupTestServer(t *testing.T) (*echo.Echo, storage.Storage, *SpyDeliverer, string) {
	t.Helper()

	testLogger := zaptest.NewLogger(t)
	dir := t.TempDir()
	cfg := TestConfig(dir)

	store, err := storage.NewStorage(cfg.StorageType, cfg.DataDir, cfg.DBHost, cfg.DBUser,
		cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	if err != nil {
		t.Fatalf("Failed to initialize storage for test: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logDir := filepath.Join(dir, "logs")
	outcomes, err := maillog.New(logDir, cfg.LogRetentionDays)
	if err != nil {
		t.Fatalf("Failed to initialize outcome logs for test: %v", err)
	}

	spy := &SpyDeliverer{Result: model.DeliveryResult{Sent: true, Attempts: 1}}
	limiter := ratelimit.New(store, cfg.IPHashSalt,
		time.Duration(cfg.RateLimitWindow)*time.Second, cfg.RateLimitMax, cfg.RateFailClosed)

	e := echo.New()
	server.ApplyCommonMiddleware(e, store, cfg, spy, limiter, outcomes, testLogger)
	server.SetupRouter(e, cfg)

	return e, store, spy, logDir
}
