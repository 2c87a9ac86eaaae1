package send

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/ingest"
	"github.com/tbarna/mailroom/internal/mailparse"
	"github.com/tbarna/mailroom/internal/models"
)

// ErrInvalidMail is returned when an outgoing message is missing required
// fields.
var ErrInvalidMail = errors.New("invalid outgoing mail")

// ErrDeliveryFailed wraps transport failures so callers can distinguish them
// from local errors. No SENT copy exists when this is returned.
var ErrDeliveryFailed = errors.New("delivery failed")

// Sender delivers mail through the transport and archives a SENT copy for the
// sender. The archive happens strictly after successful delivery: a transport
// failure leaves no SENT row.
type Sender struct {
	transport  Transport
	writer     *ingest.Writer
	mailDomain string
	log        *zap.Logger
}

// NewSender creates a Sender.
func NewSender(transport Transport, writer *ingest.Writer, mailDomain string, log *zap.Logger) *Sender {
	return &Sender{
		transport:  transport,
		writer:     writer,
		mailDomain: mailDomain,
		log:        log,
	}
}

// Send validates, delivers, and archives one outgoing message, returning the
// stored SENT copy. Recipients are not given INBOX rows here; local inbound
// copies only ever come from their own delivery path.
func (s *Sender) Send(ctx context.Context, senderUserID string, mail *OutgoingMail) (*models.Message, error) {
	if mail.From == "" {
		return nil, fmt.Errorf("%w: from is required", ErrInvalidMail)
	}
	if len(mail.To) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidMail)
	}

	if mail.MessageID == "" {
		mail.MessageID = fmt.Sprintf("<%s@%s>", uuid.NewString(), s.mailDomain)
	}

	if err := s.transport.Send(ctx, mail); err != nil {
		// Never record a send that did not happen.
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.log.Info("send: delivered message",
		zap.String("from", mail.From),
		zap.Int("recipients", len(mail.To)),
		zap.String("message_id", mail.MessageID))

	parsed := &mailparse.ParsedMessage{
		MessageID: mail.MessageID,
		From:      mail.From,
		To:        mail.To,
		Subject:   mail.Subject,
		BodyText:  mail.Text,
		BodyHTML:  mail.HTML,
		Headers:   map[string]string{"Message-Id": mail.MessageID},
	}

	result, err := s.writer.Ingest(ctx, parsed, senderUserID, models.FolderSent, time.Now().UTC())
	if err != nil {
		// Delivery already happened; surface the archival failure distinctly.
		return nil, fmt.Errorf("message delivered but failed to archive SENT copy: %w", err)
	}

	return result.Message, nil
}
