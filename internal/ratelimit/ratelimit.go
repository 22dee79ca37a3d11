// Package ratelimit implements the fixed-window submission limiter. Counters
// are keyed by a salted HMAC of the client IP so logs and storage never hold
// raw addresses.
package ratelimit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	logger = l.With(zap.String("package", "ratelimit"))
}

// Limiter applies a fixed-window policy over the persistent counter store.
// Fixed windows admit up to 2x max across a window boundary; acceptable at
// this traffic level.
type Limiter struct {
	store      storage.Storage
	salt       []byte
	window     time.Duration
	max        int
	failClosed bool
}

// New creates a Limiter. When failClosed is false, storage errors admit the
// request (the inherited behavior of the store being unreadable).
func New(store storage.Storage, salt string, window time.Duration, max int, failClosed bool) *Limiter {
	return &Limiter{
		store:      store,
		salt:       []byte(salt),
		window:     window,
		max:        max,
		failClosed: failClosed,
	}
}

// KeyFor returns the storage key for a client IP.
func (l *Limiter) KeyFor(ip string) string {
	mac := hmac.New(sha256.New, l.salt)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// Allow increments the counter for ip and reports whether the submission is
// within the window budget. The count includes the current request, so the
// max-th request is still allowed and the max+1-th is not.
func (l *Limiter) Allow(ctx context.Context, ip string, now time.Time) (bool, error) {
	key := l.KeyFor(ip)
	count, err := l.store.IncrementRateLimit(ctx, key, now, l.window)
	if err != nil {
		logger.Error("rate limit store error", zap.Error(err), zap.Bool("fail_closed", l.failClosed))
		if l.failClosed {
			return false, err
		}
		return true, nil
	}
	return count <= l.max, nil
}
