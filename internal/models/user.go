package models

import "time"

// User is a local mailbox identity. Email is the fully qualified address.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MailAccount is a remote IMAP mailbox mirrored into a local user's INBOX.
// The password is stored encrypted (AES-GCM) and only decrypted when the
// poller opens a session.
type MailAccount struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	IMAPServerHostname    string    `json:"imap_server_hostname"`
	IMAPUsername          string    `json:"imap_username"`
	EncryptedIMAPPassword []byte    `json:"-"`
	Enabled               bool      `json:"enabled"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
