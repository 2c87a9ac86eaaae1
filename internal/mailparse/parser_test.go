package mailparse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	t.Run("parses a plain text message", func(t *testing.T) {
		raw := []byte("Message-ID: <abc123@example.com>\r\n" +
			"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
			"From: Alice <alice@example.com>\r\n" +
			"To: Bob <bob@example.com>, carol@example.com\r\n" +
			"Subject: Lunch plans\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" +
			"How about noon?\r\n")

		parsed := Parse(raw)

		assert.Equal(t, "<abc123@example.com>", parsed.MessageID)
		assert.Contains(t, parsed.From, "alice@example.com")
		assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, parsed.To)
		assert.Equal(t, "Lunch plans", parsed.Subject)
		assert.Contains(t, parsed.BodyText, "How about noon?")
		assert.Equal(t, 2006, parsed.Date.Year())
		assert.Equal(t, "Lunch plans", parsed.Headers["Subject"])
	})

	t.Run("parses a multipart message with html", func(t *testing.T) {
		raw := []byte("Message-ID: <multi@example.com>\r\n" +
			"From: alice@example.com\r\n" +
			"To: bob@example.com\r\n" +
			"Subject: Report\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: multipart/alternative; boundary=xyz\r\n" +
			"\r\n" +
			"--xyz\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" +
			"plain body\r\n" +
			"--xyz\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"\r\n" +
			"<p>html body</p>\r\n" +
			"--xyz--\r\n")

		parsed := Parse(raw)

		assert.Contains(t, parsed.BodyText, "plain body")
		assert.Contains(t, parsed.BodyHTML, "<p>html body</p>")
	})

	t.Run("missing message id stays empty", func(t *testing.T) {
		raw := []byte("From: alice@example.com\r\n" +
			"To: bob@example.com\r\n" +
			"Subject: no id\r\n" +
			"\r\n" +
			"body\r\n")

		parsed := Parse(raw)

		assert.Empty(t, parsed.MessageID)
	})

	t.Run("unparseable payload becomes the text body", func(t *testing.T) {
		raw := []byte("this is not a mail message at all")

		parsed := Parse(raw)

		// Parsing never fails; the payload must survive somewhere.
		assert.Contains(t, parsed.BodyText, "this is not a mail message")
		assert.NotNil(t, parsed.Headers)
	})
}

func TestFallbackMessageID(t *testing.T) {
	received := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id1 := FallbackMessageID("alice@example.com", "hello", received)
	id2 := FallbackMessageID("alice@example.com", "hello", received)
	id3 := FallbackMessageID("alice@example.com", "different subject", received)

	if id1 != id2 {
		t.Errorf("Expected deterministic id, got %s and %s", id1, id2)
	}
	if id1 == id3 {
		t.Error("Expected different inputs to produce different ids")
	}
	if !strings.HasPrefix(id1, "<") || !strings.HasSuffix(id1, ">") {
		t.Errorf("Expected angle-bracketed id, got %s", id1)
	}
}
