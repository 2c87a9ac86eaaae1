package send

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
)

// OutgoingMail is the payload handed to the outbound transport.
type OutgoingMail struct {
	MessageID string
	From      string
	To        []string
	Subject   string
	Text      string
	HTML      string
}

// Transport delivers outbound mail. Implementations must either deliver or
// return an error; the caller records a SENT copy only on success.
type Transport interface {
	Send(ctx context.Context, mail *OutgoingMail) error
}

// SMTPTransport delivers through an SMTP relay with PLAIN auth.
type SMTPTransport struct {
	addr     string
	username string
	password string
}

// NewSMTPTransport creates a transport for the given relay address
// (host:port). Empty username disables authentication.
func NewSMTPTransport(addr, username, password string) *SMTPTransport {
	return &SMTPTransport{addr: addr, username: username, password: password}
}

// Send composes the wire message and submits it to the relay.
func (t *SMTPTransport) Send(_ context.Context, mail *OutgoingMail) error {
	raw, err := composeMessage(mail)
	if err != nil {
		return fmt.Errorf("failed to compose message: %w", err)
	}

	var auth sasl.Client
	if t.username != "" {
		auth = sasl.NewPlainClient("", t.username, t.password)
	}

	if err := gosmtp.SendMail(t.addr, auth, mail.From, mail.To, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", t.addr, err)
	}

	return nil
}

// composeMessage builds the RFC 822 payload with enmime.
func composeMessage(mail *OutgoingMail) ([]byte, error) {
	builder := enmime.Builder().
		From("", mail.From).
		Subject(mail.Subject).
		Date(time.Now().UTC()).
		Text([]byte(mail.Text))

	for _, to := range mail.To {
		builder = builder.To("", to)
	}

	if mail.HTML != "" {
		builder = builder.HTML([]byte(mail.HTML))
	}

	root, err := builder.Build()
	if err != nil {
		return nil, err
	}

	if mail.MessageID != "" {
		root.Header.Set("Message-Id", mail.MessageID)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
