package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/auth"
	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/mailbox"
	"github.com/tbarna/mailroom/internal/send"
)

// GetActorFromContext extracts the resolved identity from the request
// context, resolves/creates the DB user, and writes appropriate HTTP errors
// when it fails. Returns (actor, true) on success. Shared across handlers so
// identity resolution happens the same way everywhere.
func GetActorFromContext(ctx context.Context, w http.ResponseWriter, pool *pgxpool.Pool, log *zap.Logger) (mailbox.Actor, bool) {
	email, ok := auth.GetUserEmailFromContext(ctx)
	if !ok {
		log.Debug("api: no user email in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return mailbox.Actor{}, false
	}

	userID, err := db.GetOrCreateUser(ctx, pool, email)
	if err != nil {
		log.Error("api: failed to get/create user", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return mailbox.Actor{}, false
	}

	return mailbox.Actor{UserID: userID, Email: email}, true
}

// ParseLimitParam parses the limit query parameter, returning 0 (meaning
// "use the default cap") when missing or invalid.
func ParseLimitParam(r *http.Request) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return 0
	}

	return limit
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps core errors onto HTTP status codes.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, db.ErrMessageNotFound):
		http.Error(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, mailbox.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, mailbox.ErrInvalidFolder),
		errors.Is(err, mailbox.ErrInvalidAction),
		errors.Is(err, send.ErrInvalidMail):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, send.ErrDeliveryFailed):
		log.Error("api: outbound delivery failed", zap.Error(err))
		http.Error(w, "Delivery failed", http.StatusBadGateway)
	default:
		log.Error("api: request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
