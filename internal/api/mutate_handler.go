package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/mailbox"
	"github.com/tbarna/mailroom/internal/models"
)

// MutateHandler serves flag, folder, and delete mutations, single and bulk.
type MutateHandler struct {
	pool    *pgxpool.Pool
	mailbox *mailbox.Service
	log     *zap.Logger
}

// NewMutateHandler creates a new MutateHandler instance.
func NewMutateHandler(pool *pgxpool.Pool, mailboxService *mailbox.Service, log *zap.Logger) *MutateHandler {
	return &MutateHandler{
		pool:    pool,
		mailbox: mailboxService,
		log:     log,
	}
}

type mutateRequest struct {
	Action string `json:"action"`
	Folder string `json:"folder,omitempty"`
}

// PatchMessage applies one action to one message. Supported actions:
// read, unread, star, unstar, move (with "folder").
func (h *MutateHandler) PatchMessage(w http.ResponseWriter, r *http.Request, messageID string) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch strings.ToLower(req.Action) {
	case "read":
		err = h.mailbox.SetRead(ctx, messageID, actor, true)
	case "unread":
		err = h.mailbox.SetRead(ctx, messageID, actor, false)
	case "star":
		err = h.mailbox.SetStarred(ctx, messageID, actor, true)
	case "unstar":
		err = h.mailbox.SetStarred(ctx, messageID, actor, false)
	case "move":
		err = h.mailbox.Move(ctx, messageID, actor, models.Folder(strings.ToUpper(req.Folder)))
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// DeleteMessage soft-deletes (moves to TRASH) by default; ?permanent=true
// removes the row irrecoverably.
func (h *MutateHandler) DeleteMessage(w http.ResponseWriter, r *http.Request, messageID string) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	var err error
	if r.URL.Query().Get("permanent") == "true" {
		err = h.mailbox.PermanentDelete(ctx, messageID, actor)
	} else {
		err = h.mailbox.SoftDelete(ctx, messageID, actor)
	}

	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
	Folder string   `json:"folder,omitempty"`
}

// PostBulk applies one action to many messages and reports the count actually
// mutated; ids the actor cannot access are skipped, not errors.
func (h *MutateHandler) PostBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.IDs) == 0 {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}

	applied, err := h.mailbox.BulkApply(ctx, req.IDs, actor,
		mailbox.BulkAction(strings.ToLower(req.Action)),
		mailbox.BulkParams{TargetFolder: models.Folder(strings.ToUpper(req.Folder))})

	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"applied": applied})
}
