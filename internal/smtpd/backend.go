package smtpd

import (
	"context"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/ingest"
	"github.com/tbarna/mailroom/internal/mailparse"
	"github.com/tbarna/mailroom/internal/models"
)

// ingestTimeout bounds the store work for one inbound delivery.
const ingestTimeout = 30 * time.Second

// Backend implements the go-smtp Backend interface for inbound delivery.
//
// This is a receiving-only listener: it accepts mail addressed to the
// configured local domain and files one INBOX copy per resolvable local
// recipient. It never relays. Recipients on foreign domains are refused at
// RCPT time; recipients on the local domain with no matching mailbox are
// accepted and then logged and dropped at DATA time, without generating a
// bounce.
type Backend struct {
	pool       *pgxpool.Pool
	writer     *ingest.Writer
	mailDomain string
	log        *zap.Logger
}

// NewBackend creates an inbound SMTP backend delivering into the given writer.
func NewBackend(pool *pgxpool.Pool, writer *ingest.Writer, mailDomain string, log *zap.Logger) *Backend {
	return &Backend{
		pool:       pool,
		writer:     writer,
		mailDomain: strings.ToLower(mailDomain),
		log:        log,
	}
}

// NewSession creates a new SMTP session. Sessions are per-connection and
// connections may be concurrent; each carries a delivery id for logging.
func (b *Backend) NewSession(*gosmtp.Conn) (gosmtp.Session, error) {
	return &session{
		backend:    b,
		deliveryID: uuid.NewString(),
	}, nil
}

type session struct {
	backend    *Backend
	deliveryID string
	from       string
	recipients []string
}

// Mail handles the MAIL FROM command.
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = normalizeAddress(from)
	return nil
}

// Rcpt handles the RCPT TO command. Only addresses on the configured mail
// domain are accepted; everything else is refused so the listener can never
// be used as a relay.
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 || parts[0] == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if parts[1] != s.backend.mailDomain {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "relay not permitted",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data accepts the message payload and files one INBOX copy per local
// recipient. Parsing is best-effort and never rejects the delivery; a store
// failure for one recipient does not abort delivery to the others.
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	parsed := mailparse.Parse(raw)

	log := s.backend.log.With(
		zap.String("delivery_id", s.deliveryID),
		zap.String("from", s.from),
	)

	var resolvable, stored int
	for _, recipient := range s.recipients {
		userID, err := db.GetUserIDByEmail(ctx, s.backend.pool, recipient)
		if err != nil {
			if err == db.ErrUserNotFound {
				log.Warn("smtpd: no local mailbox for recipient, dropping",
					zap.String("recipient", recipient))
				continue
			}
			log.Error("smtpd: failed to resolve recipient",
				zap.String("recipient", recipient), zap.Error(err))
			resolvable++
			continue
		}

		resolvable++
		// No receivedAt override: the writer uses the Date header when
		// present, so a redelivered payload keeps the same fallback
		// identity even without a Message-ID.
		if _, err := s.backend.writer.Ingest(ctx, parsed, userID, models.FolderInbox, time.Time{}); err != nil {
			log.Error("smtpd: failed to store message for recipient",
				zap.String("recipient", recipient), zap.Error(err))
			continue
		}
		stored++
	}

	// If every resolvable recipient failed to store, report a transient
	// failure so the sending side's own queueing can retry the delivery.
	if resolvable > 0 && stored == 0 {
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "temporary local error, try again later",
		}
	}

	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.recipients = nil
}

func (s *session) Logout() error {
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
