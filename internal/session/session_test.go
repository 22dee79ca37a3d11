package session_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyntaxSidekick/contactgate/internal/model"
	"github.com/SyntaxSidekick/contactgate/internal/session"
)

func TestIssue_GeneratesTokenAndCaptcha(t *testing.T) {
	sess := &model.Session{ID: "sess-1"}
	now := time.Now()

	question, err := session.Issue(sess, now, time.Hour)
	require.NoError(t, err)

	assert.Len(t, sess.CSRFToken, 64, "32 random bytes, hex encoded")
	assert.GreaterOrEqual(t, sess.CaptchaSum, 2, "two digits in [1,9]")
	assert.LessOrEqual(t, sess.CaptchaSum, 18)
	assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))

	// The question must describe the stored sum without revealing it.
	var a, b int
	_, err = fmt.Sscanf(question, "What is %d + %d?", &a, &b)
	require.NoError(t, err)
	assert.Equal(t, sess.CaptchaSum, a+b)
}

func TestIssue_RegeneratesTokenEveryCall(t *testing.T) {
	sess := &model.Session{ID: "sess-1"}
	now := time.Now()

	_, err := session.Issue(sess, now, time.Hour)
	require.NoError(t, err)
	first := sess.CSRFToken

	_, err = session.Issue(sess, now, time.Hour)
	require.NoError(t, err)

	// Re-issuing invalidates the previous token for this session.
	assert.NotEqual(t, first, sess.CSRFToken)
}
