// Package mailer delivers validated submissions over SMTP with a bounded
// retry policy, falling back to the host MTA when no SMTP credentials are
// configured.
package mailer

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-gomail/gomail"
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
	logger = l.With(zap.String("package", "mailer"))
}

const subject = "New Portfolio Contact"

// Message is a validated submission ready for delivery.
type Message struct {
	Name   string
	Email  string // Reply-To
	Body   string
	Source string
	IP     string
}

// Deliverer is the surface the submission gate depends on. Tests substitute
// a spy to assert on call counts.
type Deliverer interface {
	Attempt(ctx context.Context, msg Message) model.DeliveryResult
	// Configured reports whether the primary transport is available; the
	// health probe exposes this.
	Configured() bool
}

// Transport sends one composed mail. The production transport wraps a gomail
// SMTP dialer.
type Transport interface {
	Send(m *gomail.Message) error
}

type smtpTransport struct {
	dialer *gomail.Dialer
}

func (t *smtpTransport) Send(m *gomail.Message) error {
	return t.dialer.DialAndSend(m)
}

// RetryPolicy bounds the primary transport attempts. MaxAttempts counts the
// first try, so configured retries + 1.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Config carries the SMTP settings for the primary transport.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Retries  int
}

// Attempter implements Deliverer. sleep is injectable so retry timing is
// testable without real delays.
type Attempter struct {
	cfg       Config
	transport Transport
	policy    RetryPolicy
	sleep     func(time.Duration)
}

// New builds an Attempter. When SMTP credentials are incomplete the primary
// transport is left nil and Attempt goes straight to the host fallback.
func New(cfg Config) *Attempter {
	a := &Attempter{
		cfg: cfg,
		policy: RetryPolicy{
			MaxAttempts: cfg.Retries + 1,
			Interval:    time.Second,
		},
		sleep: time.Sleep,
	}
	if cfg.Host != "" && cfg.Username != "" && cfg.Password != "" {
		dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		dialer.SSL = cfg.Port == 465
		a.transport = &smtpTransport{dialer: dialer}
	}
	return a
}

// NewWithTransport is used by tests to substitute the transport and clock.
func NewWithTransport(cfg Config, transport Transport, policy RetryPolicy, sleep func(time.Duration)) *Attempter {
	return &Attempter{cfg: cfg, transport: transport, policy: policy, sleep: sleep}
}

// Configured reports whether the primary SMTP transport is available.
func (a *Attempter) Configured() bool {
	return a.transport != nil
}

// Attempt delivers msg: up to MaxAttempts tries on the primary transport with
// a fixed interval between them, or one fallback send with no retry when the
// primary is unavailable. Transport error detail stays in the result for the
// server-side log only.
func (a *Attempter) Attempt(ctx context.Context, msg Message) model.DeliveryResult {
	if a.transport == nil {
		return a.attemptFallback(msg)
	}

	m := a.compose(msg)
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(a.policy.Interval),
		uint64(a.policy.MaxAttempts-1),
	)

	result := model.DeliveryResult{}
	for {
		if err := ctx.Err(); err != nil {
			result.Err = err.Error()
			return result
		}
		result.Attempts++
		err := a.transport.Send(m)
		if err == nil {
			result.Sent = true
			return result
		}
		result.Err = err.Error()
		logger.Warn("delivery attempt failed",
			zap.Int("attempt", result.Attempts), zap.Error(err))

		next := bo.NextBackOff()
		if next == backoff.Stop {
			return result
		}
		a.sleep(next)
	}
}

func (a *Attempter) compose(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(a.cfg.From, "Portfolio Contact"))
	m.SetHeader("To", a.cfg.To)
	m.SetHeader("Reply-To", m.FormatAddress(msg.Email, msg.Name))
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody(msg))
	m.AddAlternative("text/html", htmlBody(msg))
	return m
}

// attemptFallback hands the message to the local MTA once. Less reliable,
// but better than dropping mail when SMTP credentials are absent.
func (a *Attempter) attemptFallback(msg Message) model.DeliveryResult {
	result := model.DeliveryResult{Attempts: 1, Fallback: true}
	raw := "From: " + a.cfg.From + "\r\n" +
		"To: " + a.cfg.To + "\r\n" +
		"Reply-To: " + msg.Email + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		plainBody(msg)
	err := smtp.SendMail("localhost:25", nil, a.cfg.From, []string{a.cfg.To}, []byte(raw))
	if err != nil {
		result.Err = err.Error()
		logger.Warn("fallback delivery failed", zap.Error(err))
		return result
	}
	result.Sent = true
	return result
}

func plainBody(msg Message) string {
	return fmt.Sprintf("New Portfolio Contact\nName: %s\nEmail: %s\nSource: %s\nIP: %s\n\nMessage:\n%s",
		msg.Name, msg.Email, msg.Source, msg.IP, msg.Body)
}

func htmlBody(msg Message) string {
	escaped := html.EscapeString(msg.Body)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return fmt.Sprintf(`<html><body style="font-family:Arial,sans-serif;">`+
		`<h2>New Portfolio Contact</h2>`+
		`<p><strong>Name:</strong> %s</p>`+
		`<p><strong>Email:</strong> %s</p>`+
		`<p><strong>Source:</strong> %s</p>`+
		`<p><strong>IP:</strong> %s</p>`+
		`<hr><p style="white-space:pre-line">%s</p>`+
		`</body></html>`,
		html.EscapeString(msg.Name), html.EscapeString(msg.Email),
		html.EscapeString(msg.Source), html.EscapeString(msg.IP), escaped)
}
