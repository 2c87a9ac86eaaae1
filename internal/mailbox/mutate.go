package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/models"
)

// ErrInvalidAction is returned for bulk actions outside the supported set.
var ErrInvalidAction = errors.New("invalid bulk action")

// Service owns every user-driven folder and flag mutation. All writes go
// through loadAuthorized first, so the ownership check has one choke point.
type Service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewService creates a mailbox Service.
func NewService(pool *pgxpool.Pool, log *zap.Logger) *Service {
	return &Service{pool: pool, log: log}
}

// loadAuthorized fetches a message and enforces the ownership invariant.
func (s *Service) loadAuthorized(ctx context.Context, id string, actor Actor) (*models.Message, error) {
	msg, err := db.GetMessage(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}

	if !CanAccess(msg, actor) {
		return nil, ErrForbidden
	}

	return msg, nil
}

// Get returns one message the actor is allowed to see.
func (s *Service) Get(ctx context.Context, id string, actor Actor) (*models.Message, error) {
	return s.loadAuthorized(ctx, id, actor)
}

// SetRead sets the read flag on one message.
func (s *Service) SetRead(ctx context.Context, id string, actor Actor, read bool) error {
	if _, err := s.loadAuthorized(ctx, id, actor); err != nil {
		return err
	}

	return db.UpdateMessageFlags(ctx, s.pool, id, db.FlagPatch{IsRead: &read})
}

// SetStarred sets the starred flag on one message.
func (s *Service) SetStarred(ctx context.Context, id string, actor Actor, starred bool) error {
	if _, err := s.loadAuthorized(ctx, id, actor); err != nil {
		return err
	}

	return db.UpdateMessageFlags(ctx, s.pool, id, db.FlagPatch{IsStarred: &starred})
}

// Move files one message into the target folder. Moving to SPAM sets the spam
// flag; moving anywhere else clears it. The flag is written only here, in
// lockstep with the folder.
func (s *Service) Move(ctx context.Context, id string, actor Actor, target models.Folder) error {
	if !models.ValidFolder(target) {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, target)
	}

	if _, err := s.loadAuthorized(ctx, id, actor); err != nil {
		return err
	}

	return db.UpdateMessageFolder(ctx, s.pool, id, target)
}

// SoftDelete moves one message to TRASH. The row remains queryable and can be
// restored with a regular move.
func (s *Service) SoftDelete(ctx context.Context, id string, actor Actor) error {
	return s.Move(ctx, id, actor, models.FolderTrash)
}

// PermanentDelete removes one message row irrecoverably.
func (s *Service) PermanentDelete(ctx context.Context, id string, actor Actor) error {
	if _, err := s.loadAuthorized(ctx, id, actor); err != nil {
		return err
	}

	return db.DeleteMessagePermanent(ctx, s.pool, id)
}

// BulkAction is one of the operations BulkApply can perform.
type BulkAction string

const (
	BulkDelete BulkAction = "delete"
	BulkSpam   BulkAction = "spam"
	BulkMove   BulkAction = "move"
	BulkRead   BulkAction = "read"
	BulkUnread BulkAction = "unread"
)

// BulkParams carries per-action parameters; only move uses it.
type BulkParams struct {
	TargetFolder models.Folder
}

// BulkApply applies one action to every eligible message in ids and returns
// the count actually mutated. Ids the actor cannot access, and ids that no
// longer exist, are silently excluded rather than failing the batch.
func (s *Service) BulkApply(ctx context.Context, ids []string, actor Actor, action BulkAction, params BulkParams) (int, error) {
	var apply func(ctx context.Context, id string) error

	switch action {
	case BulkDelete:
		apply = func(ctx context.Context, id string) error {
			return db.UpdateMessageFolder(ctx, s.pool, id, models.FolderTrash)
		}
	case BulkSpam:
		apply = func(ctx context.Context, id string) error {
			return db.UpdateMessageFolder(ctx, s.pool, id, models.FolderSpam)
		}
	case BulkMove:
		if !models.ValidFolder(params.TargetFolder) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFolder, params.TargetFolder)
		}
		apply = func(ctx context.Context, id string) error {
			return db.UpdateMessageFolder(ctx, s.pool, id, params.TargetFolder)
		}
	case BulkRead, BulkUnread:
		read := action == BulkRead
		apply = func(ctx context.Context, id string) error {
			return db.UpdateMessageFlags(ctx, s.pool, id, db.FlagPatch{IsRead: &read})
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	applied := 0
	for _, id := range ids {
		if _, err := s.loadAuthorized(ctx, id, actor); err != nil {
			if errors.Is(err, ErrForbidden) || errors.Is(err, db.ErrMessageNotFound) {
				s.log.Debug("mailbox: bulk action skipped ineligible message",
					zap.String("message_id", id), zap.String("action", string(action)))
				continue
			}
			return applied, err
		}

		if err := apply(ctx, id); err != nil {
			if errors.Is(err, db.ErrMessageNotFound) {
				continue
			}
			return applied, err
		}
		applied++
	}

	return applied, nil
}
