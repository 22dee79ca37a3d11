package model

import (
	"time"
)

// Submission is the JSON body of a contact-form POST as sent by the client.
// The server never trusts these values; everything is re-validated.
type Submission struct {
	Name          string `json:"name"`          // Sender display name
	Email         string `json:"email"`         // Reply-to address
	Message       string `json:"message"`       // Free-text message body
	Website       string `json:"website"`       // Honeypot field, expected empty
	Source        string `json:"source"`        // Which page/form produced the submission
	CSRF          string `json:"csrf"`          // Token from the challenge endpoint
	CaptchaAnswer string `json:"captchaAnswer"` // Answer to the math captcha
}

// FieldErrors maps field names to user-facing validation messages.
type FieldErrors map[string]string

// Session holds the per-visitor challenge state issued by the CSRF endpoint.
// It is persisted so handlers can be tested without an ambient session layer.
type Session struct {
	ID         string    `json:"-" db:"id"`          // Cookie-bound session identifier (UUID)
	CSRFToken  string    `json:"-" db:"csrf_token"`  // 32 random bytes, hex encoded; regenerated on every issue
	CaptchaSum int       `json:"-" db:"captcha_sum"` // Expected a+b answer; reusable for the session lifetime
	CreatedAt  time.Time `json:"-" db:"created_at"`  // Timestamp of issuance
	ExpiresAt  time.Time `json:"-" db:"expires_at"`  // Session TTL boundary
}

// RateLimitEntry is one fixed-window counter keyed by a salted IP hash.
type RateLimitEntry struct {
	Key         string    `json:"key" db:"key"`                  // hex(HMAC-SHA256(ip, salt))
	Count       int       `json:"count" db:"count"`              // Requests observed in the current window
	WindowStart time.Time `json:"windowStart" db:"window_start"` // Start of the current fixed window
}

// DeliveryResult reports the outcome of a delivery attempt sequence.
type DeliveryResult struct {
	Sent     bool   // True if any attempt (or the fallback) succeeded
	Attempts int    // Number of primary transport attempts made
	Fallback bool   // True if the host fallback transport was used
	Err      string // Last transport error, log-only; never sent to the caller
}

// OutcomeEntry is one JSON line appended to the success or error log.
type OutcomeEntry struct {
	IPHash   string `json:"ip"`                 // Salted hash, never the raw address
	OK       bool   `json:"ok"`                 // Delivery outcome
	Length   int    `json:"len,omitempty"`      // Message length in bytes
	Source   string `json:"source,omitempty"`   // Originating form
	Fallback bool   `json:"fallback,omitempty"` // Sent via the fallback transport
	Error    string `json:"error,omitempty"`    // Transport error detail (error log only)
	TS       string `json:"ts"`                 // ISO8601, filled by the log writer
}
