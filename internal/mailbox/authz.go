package mailbox

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/tbarna/mailroom/internal/models"
)

// ErrForbidden is returned when the acting identity is neither the owner of a
// message nor one of its recipients.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidFolder is returned for folder values outside the closed set.
var ErrInvalidFolder = errors.New("invalid folder")

// Actor is the resolved identity performing an operation.
type Actor struct {
	UserID string
	Email  string
}

// CanAccess is the single authorization predicate applied before every
// mutation: the actor must own the message copy or appear in its recipient
// set.
func CanAccess(msg *models.Message, actor Actor) bool {
	if msg.UserID != "" && msg.UserID == actor.UserID {
		return true
	}

	for _, recipient := range msg.ToAddresses {
		if addressMatches(recipient, actor.Email) {
			return true
		}
	}

	return false
}

// addressMatches compares a possibly display-named recipient ("Bob <b@d>")
// against a bare address, case-insensitively.
func addressMatches(recipient, email string) bool {
	if email == "" {
		return false
	}

	if parsed, err := mail.ParseAddress(recipient); err == nil {
		recipient = parsed.Address
	}

	return strings.EqualFold(strings.TrimSpace(recipient), email)
}
