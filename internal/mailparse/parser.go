package mailparse

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

// ParsedMessage is the protocol-independent result of parsing one raw RFC 822
// payload. Both the SMTP receiver and the IMAP poller produce this shape.
type ParsedMessage struct {
	MessageID string
	From      string
	To        []string
	Subject   string
	BodyText  string
	BodyHTML  string
	Headers   map[string]string
	Date      time.Time
}

// Parse parses a raw message best-effort. It never fails: when the payload
// cannot be parsed as MIME, the whole payload becomes the text body with empty
// headers, because dropping mail is worse than storing it malformed.
func Parse(raw []byte) *ParsedMessage {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return &ParsedMessage{
			BodyText: string(raw),
			Headers:  map[string]string{},
		}
	}

	parsed := &ParsedMessage{
		MessageID: strings.TrimSpace(envelope.GetHeader("Message-Id")),
		From:      strings.TrimSpace(envelope.GetHeader("From")),
		Subject:   envelope.GetHeader("Subject"),
		BodyText:  envelope.Text,
		BodyHTML:  envelope.HTML,
		Headers:   map[string]string{},
	}

	for _, key := range envelope.GetHeaderKeys() {
		parsed.Headers[key] = envelope.GetHeader(key)
	}

	if addresses, err := envelope.AddressList("To"); err == nil {
		for _, address := range addresses {
			parsed.To = append(parsed.To, address.Address)
		}
	} else if to := strings.TrimSpace(envelope.GetHeader("To")); to != "" {
		// Unparseable recipient header, keep it verbatim rather than lose it.
		parsed.To = append(parsed.To, to)
	}

	if date := envelope.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			parsed.Date = t
		}
	}

	return parsed
}

// FallbackMessageID builds a deterministic placeholder Message-ID for
// messages that arrive without one, so re-ingesting the identical payload
// still dedups against the same identity.
func FallbackMessageID(from, subject string, received time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", from, subject, received.Unix()))
	return fmt.Sprintf("<%x@fallback.local>", sum[:16])
}
