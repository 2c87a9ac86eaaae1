package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tbarna/mailroom/internal/models"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

// DefaultListLimit caps result sets when the caller does not ask for less.
const DefaultListLimit = 200

const messageColumns = `
	id,
	user_id,
	message_id_header,
	folder,
	from_address,
	to_addresses,
	subject,
	body_text,
	unsafe_body_html,
	headers,
	is_read,
	is_starred,
	is_spam,
	created_at,
	received_at`

// InsertMessageIfAbsent inserts a message row unless a row with the same
// (user_id, message_id_header, folder) identity already exists. It returns
// true when a new row was inserted. On a duplicate it returns false and loads
// the existing row into msg, so concurrent ingestion attempts for the same
// identity always converge on one row without erroring.
func InsertMessageIfAbsent(ctx context.Context, pool *pgxpool.Pool, msg *models.Message) (bool, error) {
	msg.IsSpam = msg.Folder == models.FolderSpam
	if msg.Headers == nil {
		msg.Headers = map[string]string{}
	}
	if msg.ToAddresses == nil {
		msg.ToAddresses = []string{}
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO messages (
			user_id,
			message_id_header,
			folder,
			from_address,
			to_addresses,
			subject,
			body_text,
			unsafe_body_html,
			headers,
			is_read,
			is_starred,
			is_spam,
			received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, message_id_header, folder) DO NOTHING
		RETURNING id, created_at, received_at
	`,
		msg.UserID,
		msg.MessageIDHeader,
		msg.Folder,
		msg.FromAddress,
		msg.ToAddresses,
		msg.Subject,
		msg.BodyText,
		msg.UnsafeBodyHTML,
		msg.Headers,
		msg.IsRead,
		msg.IsStarred,
		msg.IsSpam,
		msg.ReceivedAt,
	).Scan(&msg.ID, &msg.CreatedAt, &msg.ReceivedAt)

	if err == nil {
		return true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	// The identity already exists. Load the winning row so the caller observes
	// the canonical copy rather than its own attempt.
	existing, err := GetMessageByIdentity(ctx, pool, msg.UserID, msg.MessageIDHeader, msg.Folder)
	if err != nil {
		return false, fmt.Errorf("failed to load existing message after conflict: %w", err)
	}

	*msg = *existing
	return false, nil
}

// GetMessage returns a message by its row id.
func GetMessage(ctx context.Context, pool *pgxpool.Pool, id string) (*models.Message, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id)

	return scanMessage(row)
}

// GetMessageByIdentity returns the row for the unique
// (user_id, message_id_header, folder) tuple.
func GetMessageByIdentity(ctx context.Context, pool *pgxpool.Pool, userID, messageIDHeader string, folder models.Folder) (*models.Message, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE user_id = $1 AND message_id_header = $2 AND folder = $3
	`, userID, messageIDHeader, folder)

	return scanMessage(row)
}

// ListMessagesByFolder returns the owner's messages in a folder, newest first.
func ListMessagesByFolder(ctx context.Context, pool *pgxpool.Pool, userID string, folder models.Folder, limit int) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE user_id = $1 AND folder = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, folder, normalizeLimit(limit))

	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return scanMessages(rows)
}

// ListStarredMessages returns the owner's starred messages across all folders,
// newest first. This backs the virtual "Important" view.
func ListStarredMessages(ctx context.Context, pool *pgxpool.Pool, userID string, limit int) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE user_id = $1 AND is_starred
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, normalizeLimit(limit))

	if err != nil {
		return nil, fmt.Errorf("failed to list starred messages: %w", err)
	}

	return scanMessages(rows)
}

// SearchMessages returns the owner's messages whose subject or body contains
// the text, case-insensitively, newest first.
func SearchMessages(ctx context.Context, pool *pgxpool.Pool, userID, text string, limit int) ([]*models.Message, error) {
	pattern := "%" + escapeLike(text) + "%"

	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE user_id = $1 AND (subject ILIKE $2 OR body_text ILIKE $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, pattern, normalizeLimit(limit))

	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	return scanMessages(rows)
}

// GetUnreadCounts returns per-view unread totals for the owner. "Important"
// counts unread starred messages regardless of folder.
func GetUnreadCounts(ctx context.Context, pool *pgxpool.Pool, userID string) (*models.UnreadCounts, error) {
	var counts models.UnreadCounts

	err := pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE folder = 'INBOX') AS inbox,
			COUNT(*) FILTER (WHERE folder = 'SENT') AS sent,
			COUNT(*) FILTER (WHERE is_starred) AS important,
			COUNT(*) FILTER (WHERE folder = 'SPAM') AS spam,
			COUNT(*) FILTER (WHERE folder = 'TRASH') AS trash
		FROM messages
		WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&counts.Inbox, &counts.Sent, &counts.Important, &counts.Spam, &counts.Trash)

	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", err)
	}

	return &counts, nil
}

// FlagPatch updates only the flags whose pointers are non-nil.
type FlagPatch struct {
	IsRead    *bool
	IsStarred *bool
}

// UpdateMessageFlags applies a flag patch to one message.
func UpdateMessageFlags(ctx context.Context, pool *pgxpool.Pool, id string, patch FlagPatch) error {
	tag, err := pool.Exec(ctx, `
		UPDATE messages
		SET is_read = COALESCE($2, is_read),
		    is_starred = COALESCE($3, is_starred)
		WHERE id = $1
	`, id, patch.IsRead, patch.IsStarred)

	if err != nil {
		return fmt.Errorf("failed to update message flags: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}

	return nil
}

// UpdateMessageFolder moves a message to the given folder. is_spam is written
// in the same statement so it can never disagree with the folder.
func UpdateMessageFolder(ctx context.Context, pool *pgxpool.Pool, id string, folder models.Folder) error {
	tag, err := pool.Exec(ctx, `
		UPDATE messages
		SET folder = $2,
		    is_spam = ($2 = 'SPAM')
		WHERE id = $1
	`, id, folder)

	if err != nil {
		return fmt.Errorf("failed to update message folder: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}

	return nil
}

// DeleteMessagePermanent removes a message row irrecoverably.
func DeleteMessagePermanent(ctx context.Context, pool *pgxpool.Pool, id string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM messages WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

// escapeLike escapes LIKE metacharacters so user text is matched literally.
func escapeLike(text string) string {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, text[i])
	}
	return string(out)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message

	err := row.Scan(
		&msg.ID,
		&msg.UserID,
		&msg.MessageIDHeader,
		&msg.Folder,
		&msg.FromAddress,
		&msg.ToAddresses,
		&msg.Subject,
		&msg.BodyText,
		&msg.UnsafeBodyHTML,
		&msg.Headers,
		&msg.IsRead,
		&msg.IsStarred,
		&msg.IsSpam,
		&msg.CreatedAt,
		&msg.ReceivedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	return &msg, nil
}

func scanMessages(rows pgx.Rows) ([]*models.Message, error) {
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
