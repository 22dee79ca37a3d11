// Package form implements the client side of the contact pipeline: per-field
// value/focus/touch/error state and the submission lifecycle, with local
// validation mirroring the server rules.
package form

import (
	"context"
	"sync"
	"time"

	"github.com/SyntaxSidekick/contactgate/internal/model"
	"github.com/SyntaxSidekick/contactgate/internal/validate"
)

// Status strings shown to the user. The failure message is deliberately vague;
// real causes live in the server logs.
const (
	StatusThrottled = "Please wait before submitting again."
	StatusFixErrors = "Please fix the errors before submitting."
	StatusSending   = "Sending message..."
	StatusSent      = "Message sent successfully!"
	StatusFailed    = "Oh Noes! Yous Broke It! Try Snail Mail Next Time"
)

const (
	submitThrottle    = 3 * time.Second
	resetAfterSuccess = 3 * time.Second
	resetAfterDecoy   = 2 * time.Second
)

// Challenge is what the server's challenge endpoint returns.
type Challenge struct {
	CSRF            string `json:"csrf"`
	CaptchaQuestion string `json:"captchaQuestion"`
}

// Sender performs the network calls. The HTTP implementation lives in
// Client; tests substitute fakes.
type Sender interface {
	FetchChallenge(ctx context.Context) (Challenge, error)
	Submit(ctx context.Context, sub model.Submission) error
}

// FieldState tracks one user-editable field. Error is only meaningful for
// display once Touched is true.
type FieldState struct {
	Value   string
	Focused bool
	Touched bool
	Error   string
}

// Form is the state machine behind a contact form instance. All methods are
// safe for a single goroutine; the mutex exists because scheduled resets fire
// from timer goroutines.
type Form struct {
	mu sync.Mutex

	fields        map[string]*FieldState
	website       string // honeypot, stays empty for humans
	source        string
	submitting    bool
	status        string
	csrf          string
	question      string
	captchaAnswer string
	lastSubmit    time.Time

	sender   Sender
	now      func() time.Time
	schedule func(time.Duration, func())
}

// Option tweaks a Form, mainly for tests.
type Option func(*Form)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(f *Form) { f.now = now }
}

// WithScheduler replaces the deferred-reset scheduler.
func WithScheduler(schedule func(time.Duration, func())) Option {
	return func(f *Form) { f.schedule = schedule }
}

// New creates an idle form bound to sender. Source tags which page the
// submission came from.
func New(sender Sender, source string, opts ...Option) *Form {
	f := &Form{
		fields: map[string]*FieldState{
			"name":    {},
			"email":   {},
			"message": {},
		},
		source: source,
		sender: sender,
		now:    time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start fetches the CSRF token and captcha question. Call once before the
// first Submit.
func (f *Form) Start(ctx context.Context) error {
	ch, err := f.sender.FetchChallenge(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.csrf = ch.CSRF
	f.question = ch.CaptchaQuestion
	f.mu.Unlock()
	return nil
}

// UpdateField sets a field's value, re-validating live once the field has
// been touched.
func (f *Form) UpdateField(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.fields[name]
	if !ok {
		return
	}
	fs.Value = value
	if fs.Touched {
		fs.Error = validate.Field(name, value)
	}
}

// FocusField marks a field focused.
func (f *Form) FocusField(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fs, ok := f.fields[name]; ok {
		fs.Focused = true
	}
}

// BlurField marks the field touched and validates it. Focus is retained only
// while the field holds a value, matching the floating-label behavior.
func (f *Form) BlurField(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fs, ok := f.fields[name]
	if !ok {
		return
	}
	fs.Touched = true
	fs.Focused = fs.Value != ""
	fs.Error = validate.Field(name, fs.Value)
}

// SetCaptchaAnswer records the user's answer to the captcha question.
func (f *Form) SetCaptchaAnswer(answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captchaAnswer = answer
}

// SetWebsite fills the honeypot field. Humans never call this.
func (f *Form) SetWebsite(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.website = value
}

// Submit runs the client-side gate and, when everything passes, performs the
// network submission. There is no mid-flight cancellation beyond ctx; the
// caller waits for success or failure.
func (f *Form) Submit(ctx context.Context) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return
	}
	now := f.now()
	if !f.lastSubmit.IsZero() && now.Sub(f.lastSubmit) < submitThrottle {
		f.status = StatusThrottled
		f.mu.Unlock()
		return
	}
	if f.website != "" {
		// Bot sink: report success without sending anything.
		f.status = StatusSent
		f.schedule(resetAfterDecoy, f.Reset)
		f.mu.Unlock()
		return
	}

	allValid := true
	for name, fs := range f.fields {
		fs.Touched = true
		fs.Error = validate.Field(name, fs.Value)
		if fs.Error != "" {
			allValid = false
		}
	}
	if !allValid {
		f.status = StatusFixErrors
		f.mu.Unlock()
		return
	}

	f.submitting = true
	f.status = StatusSending
	f.lastSubmit = now
	sub := model.Submission{
		Name:          f.fields["name"].Value,
		Email:         f.fields["email"].Value,
		Message:       f.fields["message"].Value,
		Website:       f.website,
		Source:        f.source,
		CSRF:          f.csrf,
		CaptchaAnswer: f.captchaAnswer,
	}
	f.mu.Unlock()

	err := f.sender.Submit(ctx, sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.status = StatusFailed
		return
	}
	f.status = StatusSent
	f.schedule(resetAfterSuccess, f.Reset)
}

// Reset returns every field to its initial state and clears the status.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fs := range f.fields {
		*fs = FieldState{}
	}
	f.website = ""
	f.captchaAnswer = ""
	f.submitting = false
	f.status = ""
}

// Field returns a copy of the named field's state.
func (f *Form) Field(name string) FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fs, ok := f.fields[name]; ok {
		return *fs
	}
	return FieldState{}
}

// Status returns the current status line.
func (f *Form) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Submitting reports whether a submission is in flight.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// CaptchaQuestion returns the question fetched by Start.
func (f *Form) CaptchaQuestion() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.question
}
