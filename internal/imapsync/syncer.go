package imapsync

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/crypto"
	"github.com/tbarna/mailroom/internal/ingest"
	"github.com/tbarna/mailroom/internal/mailparse"
	"github.com/tbarna/mailroom/internal/models"
)

// Session is the slice of IMAP behavior one sync pass needs per message.
// It exists so the ingest/acknowledge ordering can be tested without a
// server.
type Session interface {
	FetchRaw(uid uint32) (*imap.Message, []byte, error)
	MarkSeen(uid uint32) error
}

type clientSession struct {
	c *client.Client
}

func (s *clientSession) FetchRaw(uid uint32) (*imap.Message, []byte, error) {
	return FetchRawMessage(s.c, uid)
}

func (s *clientSession) MarkSeen(uid uint32) error {
	return MarkSeen(s.c, uid)
}

// Syncer mirrors unseen messages from remote IMAP mailboxes into local INBOX
// copies. It owns no connections between runs; each sync opens one
// short-lived session.
type Syncer struct {
	writer    *ingest.Writer
	encryptor *crypto.Encryptor
	useTLS    bool
	log       *zap.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(writer *ingest.Writer, encryptor *crypto.Encryptor, useTLS bool, log *zap.Logger) *Syncer {
	return &Syncer{
		writer:    writer,
		encryptor: encryptor,
		useTLS:    useTLS,
		log:       log,
	}
}

// SyncAccount runs one sync pass for one remote mailbox: search unseen,
// fetch, parse, ingest, and only then mark the remote message seen.
func (s *Syncer) SyncAccount(ctx context.Context, account *models.MailAccount) error {
	password, err := s.encryptor.Decrypt(account.EncryptedIMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	c, err := Connect(account.IMAPServerHostname, s.useTLS)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", account.IMAPServerHostname, err)
	}
	defer func() {
		_ = c.Logout()
	}()

	// Bound every command so a stalled server cannot hang the cycle.
	c.Timeout = commandTimeout

	if err := Login(c, account.IMAPUsername, password); err != nil {
		return err
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("failed to select INBOX: %w", err)
	}

	uids, err := SearchUnseen(c)
	if err != nil {
		return err
	}

	return s.syncMessages(ctx, &clientSession{c: c}, account, uids)
}

// syncMessages ingests each unseen message and acknowledges it remotely only
// after the local write succeeded. A message whose local write fails stays
// unseen remotely, so the next cycle retries it. Failures for one message
// never abort the rest of the batch.
func (s *Syncer) syncMessages(ctx context.Context, session Session, account *models.MailAccount, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	log := s.log.With(
		zap.String("account_id", account.ID),
		zap.String("server", account.IMAPServerHostname),
	)
	log.Info("imapsync: found unseen messages", zap.Int("count", len(uids)))

	var synced int
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.syncMessage(ctx, session, account, uid); err != nil {
			// Leave the message unseen so the next cycle retries it.
			log.Warn("imapsync: failed to sync message", zap.Uint32("uid", uid), zap.Error(err))
			continue
		}
		synced++
	}

	log.Info("imapsync: sync pass finished", zap.Int("synced", synced), zap.Int("total", len(uids)))
	return nil
}

func (s *Syncer) syncMessage(ctx context.Context, session Session, account *models.MailAccount, uid uint32) error {
	msg, raw, err := session.FetchRaw(uid)
	if err != nil {
		return err
	}

	parsed := mailparse.Parse(raw)

	var receivedAt time.Time
	if msg != nil && !msg.InternalDate.IsZero() {
		receivedAt = msg.InternalDate
	}

	if _, err := s.writer.Ingest(ctx, parsed, account.UserID, models.FolderInbox, receivedAt); err != nil {
		return err
	}

	// Local write is durable; only now is it safe to consume the remote copy.
	return session.MarkSeen(uid)
}
