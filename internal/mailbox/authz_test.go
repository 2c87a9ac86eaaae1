package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tbarna/mailroom/internal/models"
)

func TestCanAccess(t *testing.T) {
	msg := &models.Message{
		UserID:      "owner-id",
		ToAddresses: []string{"Bob <bob@example.com>", "carol@example.com"},
	}

	tests := []struct {
		name     string
		actor    Actor
		expected bool
	}{
		{"owner", Actor{UserID: "owner-id", Email: "owner@example.com"}, true},
		{"recipient with display name", Actor{UserID: "bob-id", Email: "bob@example.com"}, true},
		{"bare recipient", Actor{UserID: "carol-id", Email: "carol@example.com"}, true},
		{"recipient case-insensitive", Actor{UserID: "bob-id", Email: "BOB@example.com"}, true},
		{"stranger", Actor{UserID: "mallory-id", Email: "mallory@example.com"}, false},
		{"empty actor", Actor{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanAccess(msg, tt.actor))
		})
	}
}
