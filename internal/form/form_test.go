package form_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyntaxSidekick/contactgate/internal/form"
	"github.com/SyntaxSidekick/contactgate/internal/model"
)

type fakeSender struct {
	challenge form.Challenge
	submitErr error
	calls     []model.Submission
}

func (f *fakeSender) FetchChallenge(context.Context) (form.Challenge, error) {
	return f.challenge, nil
}

func (f *fakeSender) Submit(_ context.Context, sub model.Submission) error {
	f.calls = append(f.calls, sub)
	return f.submitErr
}

// testHarness bundles a form with a controllable clock and scheduler.
type testHarness struct {
	form    *form.Form
	sender  *fakeSender
	now     time.Time
	pending []func()
	delays  []time.Duration
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		sender: &fakeSender{challenge: form.Challenge{CSRF: "tok-1", CaptchaQuestion: "What is 3 + 4?"}},
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.form = form.New(h.sender, "contact",
		form.WithClock(func() time.Time { return h.now }),
		form.WithScheduler(func(d time.Duration, fn func()) {
			h.delays = append(h.delays, d)
			h.pending = append(h.pending, fn)
		}),
	)
	require.NoError(t, h.form.Start(context.Background()))
	return h
}

func (h *testHarness) fillValid() {
	h.form.UpdateField("name", "Jo")
	h.form.UpdateField("email", "jo@x.com")
	h.form.UpdateField("message", "Hello there, this is a test message.")
	h.form.SetCaptchaAnswer("7")
}

// firePending runs and clears all scheduled callbacks.
func (h *testHarness) firePending() {
	for _, fn := range h.pending {
		fn()
	}
	h.pending = nil
}

func TestErrorShownOnlyAfterTouch(t *testing.T) {
	h := newHarness(t)

	h.form.UpdateField("name", "J")
	assert.Empty(t, h.form.Field("name").Error, "no error before the field is touched")

	h.form.BlurField("name")
	fs := h.form.Field("name")
	assert.True(t, fs.Touched)
	assert.Equal(t, "Name must be at least 2 characters", fs.Error)

	// Once touched, edits re-validate live.
	h.form.UpdateField("name", "Jo")
	assert.Empty(t, h.form.Field("name").Error)
}

func TestBlurKeepsFocusOnlyWithValue(t *testing.T) {
	h := newHarness(t)

	h.form.FocusField("name")
	assert.True(t, h.form.Field("name").Focused)
	h.form.BlurField("name")
	assert.False(t, h.form.Field("name").Focused, "empty field loses focus state on blur")

	h.form.FocusField("email")
	h.form.UpdateField("email", "jo@x.com")
	h.form.BlurField("email")
	assert.True(t, h.form.Field("email").Focused, "filled field keeps the floating label")
}

func TestSubmit_ValidationStopsNetworkCall(t *testing.T) {
	h := newHarness(t)

	h.form.Submit(context.Background())
	assert.Equal(t, form.StatusFixErrors, h.form.Status())
	assert.Empty(t, h.sender.calls)

	// Every field is marked touched so all errors display at once.
	for _, name := range []string{"name", "email", "message"} {
		assert.True(t, h.form.Field(name).Touched)
		assert.NotEmpty(t, h.form.Field(name).Error)
	}
}

func TestSubmit_SuccessLifecycle(t *testing.T) {
	h := newHarness(t)
	h.fillValid()

	h.form.Submit(context.Background())

	assert.Equal(t, form.StatusSent, h.form.Status())
	assert.False(t, h.form.Submitting())
	require.Len(t, h.sender.calls, 1)
	sub := h.sender.calls[0]
	assert.Equal(t, "tok-1", sub.CSRF)
	assert.Equal(t, "7", sub.CaptchaAnswer)
	assert.Equal(t, "contact", sub.Source)
	assert.Empty(t, sub.Website)

	// Fields reset after the scheduled delay, not immediately.
	require.Equal(t, []time.Duration{3 * time.Second}, h.delays)
	assert.Equal(t, "Jo", h.form.Field("name").Value)
	h.firePending()
	assert.Empty(t, h.form.Field("name").Value)
	assert.Empty(t, h.form.Status())
}

func TestSubmit_FailureKeepsFields(t *testing.T) {
	h := newHarness(t)
	h.fillValid()
	h.sender.submitErr = errors.New("boom")

	h.form.Submit(context.Background())

	assert.Equal(t, form.StatusFailed, h.form.Status())
	assert.Empty(t, h.delays, "no reset is scheduled on failure")
	assert.Equal(t, "Jo", h.form.Field("name").Value, "user input survives a failed send")
}

func TestSubmit_ThrottleBlocksRapidResubmission(t *testing.T) {
	h := newHarness(t)
	h.fillValid()

	h.form.Submit(context.Background())
	require.Len(t, h.sender.calls, 1)

	// Within 3 seconds of the accepted attempt: advisory status, no network.
	h.now = h.now.Add(2 * time.Second)
	h.form.Submit(context.Background())
	assert.Equal(t, form.StatusThrottled, h.form.Status())
	assert.Len(t, h.sender.calls, 1)

	h.now = h.now.Add(2 * time.Second)
	h.form.Submit(context.Background())
	assert.Len(t, h.sender.calls, 2)
}

func TestSubmit_HoneypotSinksWithoutSending(t *testing.T) {
	h := newHarness(t)
	h.fillValid()
	h.form.SetWebsite("https://spam.example.com")

	h.form.Submit(context.Background())

	assert.Equal(t, form.StatusSent, h.form.Status(), "bots see an ordinary success")
	assert.Empty(t, h.sender.calls, "nothing goes over the wire")
	require.Equal(t, []time.Duration{2 * time.Second}, h.delays)
	h.firePending()
	assert.Empty(t, h.form.Field("name").Value)
}

func TestCaptchaQuestionExposed(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "What is 3 + 4?", h.form.CaptchaQuestion())
}
