package mailbox

import (
	"context"
	"fmt"

	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/models"
)

// ListFolder returns the owner's messages in one folder, newest first,
// capped at the store's default limit when limit is zero or out of range.
func (s *Service) ListFolder(ctx context.Context, ownerID string, folder models.Folder, limit int) ([]*models.Message, error) {
	if !models.ValidFolder(folder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}

	return db.ListMessagesByFolder(ctx, s.pool, ownerID, folder, limit)
}

// ListStarred returns the owner's starred messages across all folders. This
// is the virtual "Important" view; it is never a persisted folder value.
func (s *Service) ListStarred(ctx context.Context, ownerID string, limit int) ([]*models.Message, error) {
	return db.ListStarredMessages(ctx, s.pool, ownerID, limit)
}

// Search returns the owner's messages whose subject or body contains text,
// case-insensitively.
func (s *Service) Search(ctx context.Context, ownerID, text string, limit int) ([]*models.Message, error) {
	return db.SearchMessages(ctx, s.pool, ownerID, text, limit)
}

// Counts returns per-view unread totals for the owner.
func (s *Service) Counts(ctx context.Context, ownerID string) (*models.UnreadCounts, error) {
	return db.GetUnreadCounts(ctx, s.pool, ownerID)
}
