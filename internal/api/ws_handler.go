package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	ws "github.com/tbarna/mailroom/internal/websocket"
)

// WebSocketHandler handles the /api/v1/ws endpoint for real-time updates.
type WebSocketHandler struct {
	pool *pgxpool.Pool
	hub  *ws.Hub
	log  *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(pool *pgxpool.Pool, hub *ws.Hub, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{pool: pool, hub: hub, log: log}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// For now, allow all origins. This server is expected to be used
		// behind a reverse proxy in a trusted environment.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with the
// Hub. Identity comes from the proxy-provided header, resolved by the same
// middleware that guards the rest of the API.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	actor, ok := GetActorFromContext(r.Context(), w, h.pool, h.log)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("api: websocket upgrade failed",
			zap.String("user_id", actor.UserID), zap.Error(err))
		return
	}

	client := h.hub.Register(actor.UserID, conn)
	if client == nil {
		h.log.Warn("api: websocket connection rejected, max connections exceeded",
			zap.String("user_id", actor.UserID))
		return
	}

	h.log.Debug("api: websocket connection established",
		zap.String("user_id", actor.UserID))

	go h.readLoop(actor.UserID, client)
}

// readLoop drains the connection until it closes, then unregisters the client.
// Inbound frames carry no meaning; the socket is push-only.
func (h *WebSocketHandler) readLoop(userID string, client *ws.Client) {
	conn := client.Conn()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(userID, client)
}
