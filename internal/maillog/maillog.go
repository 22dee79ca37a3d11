// Package maillog appends delivery outcomes as JSON lines to success and
// error log files and applies the blunt retention policy: files past the
// retention window are deleted wholesale, not rotated.
package maillog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SyntaxSidekick/contactgate/internal/model"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	logger = l.With(zap.String("package", "maillog"))
}

const (
	successFile = "success.log"
	errorFile   = "error.log"
)

// Logger writes outcome lines under dir. Appends are serialized by a mutex;
// a single process owns the files.
type Logger struct {
	dir       string
	retention time.Duration

	mu sync.Mutex
}

// New creates the log directory if needed and returns a Logger.
func New(dir string, retentionDays int) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("maillog: failed to create log dir: %w", err)
	}
	return &Logger{
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}, nil
}

// Success appends one line to the success log.
func (l *Logger) Success(entry model.OutcomeEntry) {
	entry.OK = true
	l.append(successFile, entry)
}

// Failure appends one line to the error log.
func (l *Logger) Failure(entry model.OutcomeEntry) {
	entry.OK = false
	l.append(errorFile, entry)
}

func (l *Logger) append(name string, entry model.OutcomeEntry) {
	entry.TS = time.Now().Format(time.RFC3339)
	line, err := json.Marshal(entry)
	if err != nil {
		logger.Error("failed to marshal outcome entry", zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Error("failed to open outcome log", zap.String("file", name), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		logger.Error("failed to append outcome entry", zap.String("file", name), zap.Error(err))
	}
}

// Prune deletes log files whose modification time is older than the
// retention window. Called on each submission, mirroring the per-request
// cleanup this replaces.
func (l *Logger) Prune(now time.Time) {
	cutoff := now.Add(-l.retention)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range []string{successFile, errorFile} {
		path := filepath.Join(l.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				logger.Warn("failed to prune outcome log", zap.String("file", name), zap.Error(err))
			}
		}
	}
}

// Dir returns the directory log files are written to.
func (l *Logger) Dir() string {
	return l.dir
}
