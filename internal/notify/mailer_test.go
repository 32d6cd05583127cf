// internal/notify/mailer_test.go
package notify

import (
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage(t *testing.T) {
	from := mail.Address{Name: "AI Code Review Assistant", Address: "bot@example.com"}
	msg := string(buildMessage(from, "alice@example.com", "✅ PR #7 - No issues found: x", "<p>hi</p>", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	assert.True(t, found)
	assert.Equal(t, "<p>hi</p>", body)
	assert.Contains(t, headers, `From: "AI Code Review Assistant" <bot@example.com>`)
	assert.Contains(t, headers, "To: alice@example.com")
	assert.Contains(t, headers, "Subject: =?utf-8?q?")
	assert.Contains(t, headers, "Content-Type: text/html")
}
