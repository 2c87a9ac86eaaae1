package api

import (
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/mailbox"
	"github.com/tbarna/mailroom/internal/models"
)

// MessagesHandler serves folder listings, the starred view, search, counts,
// and single-message reads.
type MessagesHandler struct {
	pool    *pgxpool.Pool
	mailbox *mailbox.Service
	log     *zap.Logger
}

// NewMessagesHandler creates a new MessagesHandler instance.
func NewMessagesHandler(pool *pgxpool.Pool, mailboxService *mailbox.Service, log *zap.Logger) *MessagesHandler {
	return &MessagesHandler{
		pool:    pool,
		mailbox: mailboxService,
		log:     log,
	}
}

// GetMessages lists messages for the current user. Query parameters select
// the view: ?folder=INBOX (default), ?view=important for the starred view, or
// ?q=text for search.
func (h *MessagesHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	limit := ParseLimitParam(r)

	var (
		messages []*models.Message
		err      error
	)

	switch {
	case r.URL.Query().Get("q") != "":
		messages, err = h.mailbox.Search(ctx, actor.UserID, r.URL.Query().Get("q"), limit)
	case strings.EqualFold(r.URL.Query().Get("view"), "important"):
		messages, err = h.mailbox.ListStarred(ctx, actor.UserID, limit)
	default:
		folder := models.Folder(strings.ToUpper(r.URL.Query().Get("folder")))
		if folder == "" {
			folder = models.FolderInbox
		}
		messages, err = h.mailbox.ListFolder(ctx, actor.UserID, folder, limit)
	}

	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	if messages == nil {
		messages = []*models.Message{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// GetCounts returns per-view unread totals for the current user.
func (h *MessagesHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	counts, err := h.mailbox.Counts(ctx, actor.UserID)
	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, counts)
}

// GetMessage returns one message by id, subject to the ownership check.
func (h *MessagesHandler) GetMessage(w http.ResponseWriter, r *http.Request, messageID string) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	msg, err := h.mailbox.Get(ctx, messageID, actor)
	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, msg)
}
