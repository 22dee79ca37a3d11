package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/SyntaxSidekick/contactgate/internal/model"
)

// PostgreSQLStorage holds the connection pool. It exists for deployments that
// already run Postgres and want the counters off the local disk.
type PostgreSQLStorage struct {
	db *sql.DB
}

// Ensure PostgreSQLStorage implements Storage (compile-time check).
var _ Storage = (*PostgreSQLStorage)(nil)

// NewPostgreSQLStorage creates a new PostgreSQLStorage instance and ensures schema exists.
func NewPostgreSQLStorage(dbHost string, dbUser string, dbPassword string, dbName string, dbPort int, dbSSLMode string) (*PostgreSQLStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		dbHost, dbUser, dbPassword, dbName, dbPort, dbSSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		logger.Error("Failed to open PostgreSQL connection", zap.Error(err))
		return nil, fmt.Errorf("storage: failed to open PostgreSQL database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		logger.Error("Failed to ping PostgreSQL database", zap.Error(err),
			zap.String("host", dbHost), zap.Int("port", dbPort), zap.String("dbname", dbName))
		return nil, fmt.Errorf("storage: failed to connect to PostgreSQL database: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL database",
		zap.String("host", dbHost), zap.Int("port", dbPort), zap.String("dbname", dbName))

	s := &PostgreSQLStorage{db: db}
	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer schemaCancel()
	if err = s.ensureSchema(schemaCtx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgreSQLStorage) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	csrf_token TEXT NOT NULL,
	captcha_sum INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS rate_limits (
	key TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	window_start TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		logger.Error("Failed to ensure PostgreSQL schema", zap.Error(err))
		return fmt.Errorf("storage: failed to ensure postgres schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStorage) SaveSession(ctx context.Context, sess *model.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, csrf_token, captcha_sum, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	csrf_token = EXCLUDED.csrf_token,
	captcha_sum = EXCLUDED.captcha_sum,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at`,
		sess.ID, sess.CSRFToken, sess.CaptchaSum, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC())
	if err != nil {
		logger.Error("Failed to save session", zap.Error(err))
		return fmt.Errorf("storage: failed to save session: %w", err)
	}
	return nil
}

func (s *PostgreSQLStorage) GetSession(ctx context.Context, id string) (*model.Session, error) {
	sess := &model.Session{}
	err := s.db.QueryRowContext(ctx, `
SELECT id, csrf_token, captcha_sum, created_at, expires_at
FROM sessions
WHERE id = $1`, id).Scan(&sess.ID, &sess.CSRFToken, &sess.CaptchaSum, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get session: %w", err)
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *PostgreSQLStorage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage: failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgreSQLStorage) IncrementRateLimit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: failed to begin rate limit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now = now.UTC()
	var count int
	var windowStart time.Time
	// FOR UPDATE serializes concurrent increments on the same key.
	err = tx.QueryRowContext(ctx, `
SELECT count, window_start FROM rate_limits WHERE key = $1 FOR UPDATE`, key).
		Scan(&count, &windowStart)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// ON CONFLICT covers a concurrent insert between the read and here;
		// RETURNING reports whichever count won.
		if err = tx.QueryRowContext(ctx, `
INSERT INTO rate_limits (key, count, window_start) VALUES ($1, 1, $2)
ON CONFLICT (key) DO UPDATE SET count = rate_limits.count + 1
RETURNING count`, key, now).Scan(&count); err != nil {
			return 0, fmt.Errorf("storage: failed to insert rate limit entry: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("storage: failed to read rate limit entry: %w", err)
	default:
		if now.Sub(windowStart) > window {
			count = 1
			windowStart = now
		} else {
			count++
		}
		if _, err = tx.ExecContext(ctx, `
UPDATE rate_limits SET count = $1, window_start = $2 WHERE key = $3`, count, windowStart, key); err != nil {
			return 0, fmt.Errorf("storage: failed to update rate limit entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: failed to commit rate limit tx: %w", err)
	}
	return count, nil
}

func (s *PostgreSQLStorage) GetRateLimitEntry(ctx context.Context, key string) (*model.RateLimitEntry, error) {
	entry := &model.RateLimitEntry{}
	err := s.db.QueryRowContext(ctx, `
SELECT key, count, window_start FROM rate_limits WHERE key = $1`, key).
		Scan(&entry.Key, &entry.Count, &entry.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRateLimitEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get rate limit entry: %w", err)
	}
	return entry, nil
}

func (s *PostgreSQLStorage) ListRateLimitEntries(ctx context.Context) ([]*model.RateLimitEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, count, window_start FROM rate_limits ORDER BY window_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list rate limit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.RateLimitEntry
	for rows.Next() {
		entry := &model.RateLimitEntry{}
		if err := rows.Scan(&entry.Key, &entry.Count, &entry.WindowStart); err != nil {
			return nil, fmt.Errorf("storage: failed to scan rate limit entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStorage) DeleteRateLimitEntry(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("storage: failed to delete rate limit entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRateLimitEntryNotFound
	}
	return nil
}
