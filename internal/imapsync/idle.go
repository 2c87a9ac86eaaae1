package imapsync

import (
	"context"
	"time"

	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/models"
)

// idleRetrySleep is the backoff duration after an error before retrying IDLE.
const idleRetrySleep = 10 * time.Second

// StartIdleListener runs an IMAP IDLE loop for one account and triggers an
// immediate sync pass whenever the remote INBOX changes, instead of waiting
// for the next poll tick. The regular poller remains the safety net for
// servers without IDLE support.
// This function blocks until the context is canceled.
func (s *Syncer) StartIdleListener(ctx context.Context, account *models.MailAccount) {
	log := s.log.With(
		zap.String("account_id", account.ID),
		zap.String("server", account.IMAPServerHostname),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.runIdleSession(ctx, account, log); err != nil {
			log.Warn("imapsync: idle session ended", zap.Error(err))
		}

		// Small backoff before reconnecting.
		select {
		case <-ctx.Done():
			return
		case <-time.After(idleRetrySleep):
		}
	}
}

// runIdleSession opens a connection, idles on INBOX, and syncs on updates.
func (s *Syncer) runIdleSession(ctx context.Context, account *models.MailAccount, log *zap.Logger) error {
	password, err := s.encryptor.Decrypt(account.EncryptedIMAPPassword)
	if err != nil {
		return err
	}

	c, err := Connect(account.IMAPServerHostname, s.useTLS)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Logout()
	}()

	// Bound the setup commands so a server that stalls after the dial cannot
	// wedge this listener.
	c.Timeout = commandTimeout

	if err := Login(c, account.IMAPUsername, password); err != nil {
		return err
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return err
	}

	// IDLE is expected to sit quiet for long stretches; the command timeout
	// must not apply to the wait itself.
	c.Timeout = 0

	idleClient := idle.NewClient(c)

	updates := make(chan imapclient.Update, 10)
	c.Updates = updates

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idleClient.IdleWithFallback(stop, 5*time.Minute)
	}()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			return nil
		case err := <-done:
			return err
		case update := <-updates:
			if update == nil {
				continue
			}
			s.handleMailboxUpdate(ctx, account, update, log)
		}
	}
}

// handleMailboxUpdate syncs the account when an update indicates new mail.
func (s *Syncer) handleMailboxUpdate(ctx context.Context, account *models.MailAccount, update imapclient.Update, log *zap.Logger) {
	mboxUpdate, ok := update.(*imapclient.MailboxUpdate)
	if !ok || mboxUpdate.Mailbox == nil {
		return
	}

	status := mboxUpdate.Mailbox
	if status.Name != "INBOX" || status.Messages == 0 {
		return
	}

	// The idling connection stays dedicated to IDLE; the sync opens its own.
	if err := s.SyncAccount(ctx, account); err != nil {
		log.Warn("imapsync: idle-triggered sync failed", zap.Error(err))
	}
}
