package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/auth"
	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/models"
	"github.com/tbarna/mailroom/internal/testutil"
	ws "github.com/tbarna/mailroom/internal/websocket"
)

func TestWebSocketHandler(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	hub := ws.NewHub(10, zap.NewNop())
	handler := NewWebSocketHandler(pool, hub, zap.NewNop())

	middleware := auth.RequireIdentity("example.com", zap.NewNop())
	server := httptest.NewServer(middleware(http.HandlerFunc(handler.Handle)))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")

	t.Run("missing identity is rejected", func(t *testing.T) {
		_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
		assert.Error(t, err)
		if resp != nil {
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		}
	})

	t.Run("connected client receives new mail events", func(t *testing.T) {
		header := http.Header{}
		header.Set(auth.IdentityHeader, "sockets@example.com")

		conn, _, err := gorilla.DefaultDialer.Dial(url, header)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer func() {
			_ = conn.Close()
		}()

		// The handler resolves the identity to a user row.
		time.Sleep(100 * time.Millisecond)
		userID, err := db.GetUserIDByEmail(context.Background(), pool, "sockets@example.com")
		if err != nil {
			t.Fatalf("GetUserIDByEmail failed: %v", err)
		}
		assert.Equal(t, 1, hub.ActiveConnections(userID))

		hub.NotifyNewMail(userID, models.FolderInbox)

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}

		var event struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		assert.Equal(t, "new_email", event.Type)
	})
}
