package form

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/SyntaxSidekick/contactgate/internal/model"
)

// Client is the HTTP Sender. A cookie jar carries the challenge session
// between the two endpoints, the way a browser would.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for a contactgate server at baseURL.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("form: failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// FetchChallenge retrieves a fresh CSRF token and captcha question.
func (c *Client) FetchChallenge(ctx context.Context) (Challenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/csrf", nil)
	if err != nil {
		return Challenge{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Challenge{}, fmt.Errorf("form: challenge request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Challenge{}, fmt.Errorf("form: challenge endpoint returned %d", resp.StatusCode)
	}
	var ch Challenge
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return Challenge{}, fmt.Errorf("form: failed to decode challenge: %w", err)
	}
	return ch, nil
}

// Submit posts the submission and treats anything but a 2xx with
// {"success":true} as a failure. The caller only ever sees a fixed status
// line; error detail here is for logs and debugging.
func (c *Client) Submit(ctx context.Context, sub model.Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contact/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("form: submit request failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("form: failed to decode submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		if out.Error != "" {
			return fmt.Errorf("form: submission rejected: %s", out.Error)
		}
		return fmt.Errorf("form: submission failed with status %d", resp.StatusCode)
	}
	return nil
}
