package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/mailparse"
	"github.com/tbarna/mailroom/internal/models"
	"github.com/tbarna/mailroom/internal/websocket"
)

// Writer is the sole creation path for stored messages. Every ingestion route
// (inbound SMTP, IMAP poll, outbound send archival) funnels through it, so
// duplicate suppression and new-mail notification live in exactly one place.
type Writer struct {
	pool *pgxpool.Pool
	hub  *websocket.Hub
	log  *zap.Logger
}

// NewWriter creates a Writer. hub may be nil when notifications are not wired
// (e.g., in tests or one-shot tools).
func NewWriter(pool *pgxpool.Pool, hub *websocket.Hub, log *zap.Logger) *Writer {
	return &Writer{pool: pool, hub: hub, log: log}
}

// Result reports what one ingestion attempt did. Created is false when the
// identical (messageId, folder, owner) row already existed; that is a normal
// outcome, not an error.
type Result struct {
	Message *models.Message
	Created bool
}

// Ingest stores one parsed message for one owner in one folder, inserting at
// most one row. receivedAt overrides the protocol-reported date; when both are
// absent, ingestion time is used. Messages without a Message-ID header get a
// deterministic placeholder so redelivery of the same payload still dedups.
func (w *Writer) Ingest(ctx context.Context, parsed *mailparse.ParsedMessage, ownerID string, folder models.Folder, receivedAt time.Time) (*Result, error) {
	if !models.ValidFolder(folder) {
		return nil, fmt.Errorf("invalid folder %q", folder)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner is required")
	}

	createdAt := time.Now().UTC()
	if receivedAt.IsZero() {
		receivedAt = parsed.Date
	}
	if receivedAt.IsZero() {
		receivedAt = createdAt
	}

	messageID := parsed.MessageID
	if messageID == "" {
		messageID = mailparse.FallbackMessageID(parsed.From, parsed.Subject, receivedAt)
	}

	msg := &models.Message{
		UserID:          ownerID,
		MessageIDHeader: messageID,
		Folder:          folder,
		FromAddress:     parsed.From,
		ToAddresses:     parsed.To,
		Subject:         parsed.Subject,
		BodyText:        parsed.BodyText,
		UnsafeBodyHTML:  parsed.BodyHTML,
		Headers:         parsed.Headers,
		ReceivedAt:      receivedAt,
	}

	inserted, err := db.InsertMessageIfAbsent(ctx, w.pool, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest message: %w", err)
	}

	if !inserted {
		w.log.Debug("ingest: duplicate suppressed",
			zap.String("owner", ownerID),
			zap.String("folder", string(folder)),
			zap.String("message_id", messageID))
		return &Result{Message: msg, Created: false}, nil
	}

	w.log.Info("ingest: stored message",
		zap.String("owner", ownerID),
		zap.String("folder", string(folder)),
		zap.String("message_id", messageID))

	if w.hub != nil {
		w.hub.NotifyNewMail(ownerID, folder)
	}

	return &Result{Message: msg, Created: true}, nil
}
