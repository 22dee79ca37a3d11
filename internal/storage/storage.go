package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SyntaxSidekick/contactgate/internal/model"
)

var logger *zap.Logger

// init initializes the package logger.
func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize zap logger: %v", err))
	}
	logger = l.With(zap.String("package", "storage"))
}

// ErrSessionNotFound is returned when no session exists for the given ID or
// the session has expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrRateLimitEntryNotFound is returned when no counter exists for a key.
var ErrRateLimitEntryNotFound = errors.New("rate limit entry not found")

// Storage defines the interface for persisting challenge sessions and
// rate-limit counters. Both backends perform the rate-limit read-modify-write
// inside a single transaction so concurrent submissions cannot lose updates.
type Storage interface {
	// Session Methods
	SaveSession(ctx context.Context, sess *model.Session) error // UPSERT by ID
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Rate Limit Methods
	// IncrementRateLimit atomically bumps the counter for key, resetting the
	// window first when now is past windowStart+window. It returns the count
	// after the increment.
	IncrementRateLimit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	GetRateLimitEntry(ctx context.Context, key string) (*model.RateLimitEntry, error)
	ListRateLimitEntries(ctx context.Context) ([]*model.RateLimitEntry, error)
	DeleteRateLimitEntry(ctx context.Context, key string) error

	Close() error // Close the underlying connection pool
}

// NewStorage is the factory function.
func NewStorage(storageType string, dataDir string, dbHost string, dbUser string, dbPassword string, dbName string, dbPort int, dbSSLMode string) (Storage, error) {
	switch strings.ToLower(storageType) {
	case "sqlite":
		return NewSQLiteStorage(dataDir)
	case "postgres":
		return NewPostgreSQLStorage(dbHost, dbUser, dbPassword, dbName, dbPort, dbSSLMode)
	default:
		logger.Error("Invalid storage type specified", zap.String("storage_type", storageType))
		return nil, fmt.Errorf("storage: invalid storage type: %s", storageType)
	}
}
