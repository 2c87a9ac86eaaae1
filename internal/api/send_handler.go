package api

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/send"
)

// SendHandler serves outbound mail submission.
type SendHandler struct {
	pool   *pgxpool.Pool
	sender *send.Sender
	log    *zap.Logger
}

// NewSendHandler creates a new SendHandler instance.
func NewSendHandler(pool *pgxpool.Pool, sender *send.Sender, log *zap.Logger) *SendHandler {
	return &SendHandler{
		pool:   pool,
		sender: sender,
		log:    log,
	}
}

type sendRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// PostSend delivers a message through the outbound transport. A transport
// failure is reported to the caller and leaves no SENT record.
func (h *SendHandler) PostSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := GetActorFromContext(ctx, w, h.pool, h.log)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.sender.Send(ctx, actor.UserID, &send.OutgoingMail{
		From:    actor.Email,
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
	})

	if err != nil {
		WriteError(w, h.log, err)
		return
	}

	WriteJSON(w, http.StatusCreated, msg)
}
