package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/SyntaxSidekick/contactgate/internal/model"
)

// SQLiteStorage is the default backend. A single file under the data
// directory survives restarts and gives the rate limiter real transactions,
// unlike the whole-file JSON rewrites it replaces.
type SQLiteStorage struct {
	db *sql.DB
}

// Ensure SQLiteStorage implements Storage (compile-time check).
var _ Storage = (*SQLiteStorage)(nil)

const sqliteDBFile = "contactgate.db"

// NewSQLiteStorage opens (or creates) the database under dataDir, enables WAL
// mode, and ensures the schema exists.
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create data dir: %w", err)
	}
	path := filepath.Join(dataDir, sqliteDBFile)
	// Per-connection PRAGMAs ride the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=synchronous(normal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open sqlite database: %w", err)
	}
	return initSQLite(db)
}

func initSQLite(db *sql.DB) (*SQLiteStorage, error) {
	// journal_mode and busy_timeout are database-wide; set them once here.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: sqlite setup (%s): %w", pragma, err)
		}
	}
	s := &SQLiteStorage{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("sqlite storage initialized")
	return s, nil
}

func (s *SQLiteStorage) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	csrf_token TEXT NOT NULL,
	captcha_sum INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS rate_limits (
	key TEXT PRIMARY KEY,
	count INTEGER NOT NULL,
	window_start DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("storage: failed to ensure sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveSession(ctx context.Context, sess *model.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, csrf_token, captcha_sum, created_at, expires_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	csrf_token = excluded.csrf_token,
	captcha_sum = excluded.captcha_sum,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at`,
		sess.ID, sess.CSRFToken, sess.CaptchaSum, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC())
	if err != nil {
		logger.Error("Failed to save session", zap.Error(err))
		return fmt.Errorf("storage: failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*model.Session, error) {
	sess := &model.Session{}
	err := s.db.QueryRowContext(ctx, `
SELECT id, csrf_token, captcha_sum, created_at, expires_at
FROM sessions
WHERE id = ?`, id).Scan(&sess.ID, &sess.CSRFToken, &sess.CaptchaSum, &sess.CreatedAt, &sess.ExpiresAt)
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

func (s *SQLiteStorage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage: failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) IncrementRateLimit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: failed to begin rate limit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now = now.UTC()
	var count int
	var windowStart time.Time
	err = tx.QueryRowContext(ctx, `SELECT count, window_start FROM rate_limits WHERE key = ?`, key).
		Scan(&count, &windowStart)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		count = 1
		if _, err = tx.ExecContext(ctx, `
INSERT INTO rate_limits(key, count, window_start) VALUES(?, ?, ?)`, key, count, now); err != nil {
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
UPDATE rate_limits SET count = ?, window_start = ? WHERE key = ?`, count, windowStart, key); err != nil {
			return 0, fmt.Errorf("storage: failed to update rate limit entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: failed to commit rate limit tx: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) GetRateLimitEntry(ctx context.Context, key string) (*model.RateLimitEntry, error) {
	entry := &model.RateLimitEntry{}
	err := s.db.QueryRowContext(ctx, `
SELECT key, count, window_start FROM rate_limits WHERE key = ?`, key).
		Scan(&entry.Key, &entry.Count, &entry.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRateLimitEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: failed to get rate limit entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStorage) ListRateLimitEntries(ctx context.Context) ([]*model.RateLimitEntry, error) {
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

func (s *SQLiteStorage) DeleteRateLimitEntry(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE key = ?`, key)
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
