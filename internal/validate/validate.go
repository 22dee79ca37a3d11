// Package validate holds the field validation rules shared by the client
// form state machine and the server submission gate. All functions are pure.
package validate

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Field validates a single named field and returns a user-facing error
// message, or the empty string when the value passes.
func Field(name, value string) string {
	switch name {
	case "name":
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return "Name is required"
		}
		if len([]rune(trimmed)) < 2 {
			return "Name must be at least 2 characters"
		}
		return ""
	case "email":
		if strings.TrimSpace(value) == "" {
			return "Email is required"
		}
		if !emailRegex.MatchString(value) {
			return "Please enter a valid email address"
		}
		return ""
	case "message":
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return "Message is required"
		}
		if len([]rune(trimmed)) < 10 {
			return "Message must be at least 10 characters"
		}
		return ""
	default:
		return ""
	}
}

// MessageLength enforces the server-side cap on message length. The client
// deliberately does not apply this rule.
func MessageLength(value string, max int) string {
	if max > 0 && len([]rune(strings.TrimSpace(value))) > max {
		return "Message too long"
	}
	return ""
}

// All runs Field over the three user-editable fields and collects failures.
func All(name, email, message string) map[string]string {
	errs := make(map[string]string)
	for field, value := range map[string]string{"name": name, "email": email, "message": message} {
		if msg := Field(field, value); msg != "" {
			errs[field] = msg
		}
	}
	return errs
}
