package maillog_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyntaxSidekick/contactgate/internal/maillog"
	"github.com/SyntaxSidekick/contactgate/internal/model"
)

func TestAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	l, err := maillog.New(dir, 7)
	require.NoError(t, err)

	l.Success(model.OutcomeEntry{IPHash: "abc", Length: 36, Source: "contact"})
	l.Success(model.OutcomeEntry{IPHash: "def", Length: 12, Source: "cli"})
	l.Failure(model.OutcomeEntry{IPHash: "abc", Error: "smtp: connection refused"})

	data, err := os.ReadFile(filepath.Join(dir, "success.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first model.OutcomeEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.True(t, first.OK)
	assert.Equal(t, "abc", first.IPHash)
	ts, err := time.Parse(time.RFC3339, first.TS)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)

	data, err = os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	var failed model.OutcomeEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &failed))
	assert.False(t, failed.OK)
	assert.Equal(t, "smtp: connection refused", failed.Error)
}

func TestPruneDeletesFilesPastRetention(t *testing.T) {
	dir := t.TempDir()
	l, err := maillog.New(dir, 7)
	require.NoError(t, err)

	l.Success(model.OutcomeEntry{IPHash: "abc"})
	path := filepath.Join(dir, "success.log")

	// Fresh file survives.
	l.Prune(time.Now())
	_, err = os.Stat(path)
	require.NoError(t, err)

	// Backdate past the retention window; the whole file goes.
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	l.Prune(time.Now())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPruneIgnoresMissingFiles(t *testing.T) {
	l, err := maillog.New(t.TempDir(), 7)
	require.NoError(t, err)
	l.Prune(time.Now()) // nothing to do, nothing to panic over
}
