package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SyntaxSidekick/contactgate/internal/validate"
)

func TestField_Name(t *testing.T) {
	assert.Equal(t, "Name is required", validate.Field("name", ""))
	assert.Equal(t, "Name is required", validate.Field("name", "   "))
	assert.Equal(t, "Name must be at least 2 characters", validate.Field("name", "J"))
	assert.Equal(t, "Name must be at least 2 characters", validate.Field("name", " J "))
	assert.Equal(t, "", validate.Field("name", "Jo"))
	assert.Equal(t, "", validate.Field("name", "Jordan Example"))
}

func TestField_Email(t *testing.T) {
	assert.Equal(t, "Email is required", validate.Field("email", ""))
	assert.Equal(t, "Please enter a valid email address", validate.Field("email", "not-an-email"))
	assert.Equal(t, "Please enter a valid email address", validate.Field("email", "a@b"))
	assert.Equal(t, "Please enter a valid email address", validate.Field("email", "a b@c.com"))
	assert.Equal(t, "", validate.Field("email", "jo@x.com"))
	assert.Equal(t, "", validate.Field("email", "first.last+tag@sub.example.co"))
}

func TestField_Message(t *testing.T) {
	assert.Equal(t, "Message is required", validate.Field("message", ""))
	assert.Equal(t, "Message must be at least 10 characters", validate.Field("message", "too short"))
	assert.Equal(t, "", validate.Field("message", "Hello there, this is a test message."))
}

func TestField_UnknownFieldPasses(t *testing.T) {
	assert.Equal(t, "", validate.Field("website", "anything"))
}

func TestMessageLength(t *testing.T) {
	assert.Equal(t, "", validate.MessageLength("short enough", 100))
	assert.Equal(t, "Message too long", validate.MessageLength(strings.Repeat("a", 101), 100))
	// Zero max disables the cap.
	assert.Equal(t, "", validate.MessageLength(strings.Repeat("a", 100000), 0))
}

func TestAll_ValidInputsProduceNoErrors(t *testing.T) {
	errs := validate.All("Jo", "jo@x.com", "Hello there, this is a test message.")
	assert.Empty(t, errs)
}

func TestAll_CollectsAllFailures(t *testing.T) {
	errs := validate.All("", "bad", "short")
	assert.Equal(t, "Name is required", errs["name"])
	assert.Equal(t, "Please enter a valid email address", errs["email"])
	assert.Equal(t, "Message must be at least 10 characters", errs["message"])
}
