package models

import "time"

// Folder is the closed set of mailbox locations a message copy can be filed in.
type Folder string

const (
	FolderInbox Folder = "INBOX"
	FolderSent  Folder = "SENT"
	FolderSpam  Folder = "SPAM"
	FolderTrash Folder = "TRASH"
)

// ValidFolder reports whether f is one of the persisted folder values.
// The virtual "IMPORTANT" view is not a folder and is rejected here.
func ValidFolder(f Folder) bool {
	switch f {
	case FolderInbox, FolderSent, FolderSpam, FolderTrash:
		return true
	}
	return false
}

// Message is one owned copy of a mail message. The same underlying message may
// exist as several rows differing in owner and folder; the tuple
// (UserID, MessageIDHeader, Folder) is unique.
type Message struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	MessageIDHeader string            `json:"message_id_header"`
	Folder          Folder            `json:"folder"`
	FromAddress     string            `json:"from_address"`
	ToAddresses     []string          `json:"to_addresses"`
	Subject         string            `json:"subject"`
	BodyText        string            `json:"body_text"`
	UnsafeBodyHTML  string            `json:"unsafe_body_html"`
	Headers         map[string]string `json:"headers,omitempty"`
	IsRead          bool              `json:"is_read"`
	IsStarred       bool              `json:"is_starred"`
	IsSpam          bool              `json:"is_spam"`
	CreatedAt       time.Time         `json:"created_at"`
	ReceivedAt      time.Time         `json:"received_at"`
}

// UnreadCounts holds the per-view unread totals for one owner. Important is a
// virtual view over starred messages in any folder.
type UnreadCounts struct {
	Inbox     int `json:"inbox"`
	Sent      int `json:"sent"`
	Important int `json:"important"`
	Spam      int `json:"spam"`
	Trash     int `json:"trash"`
}
