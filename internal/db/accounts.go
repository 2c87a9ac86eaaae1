package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tbarna/mailroom/internal/models"
)

// ErrMailAccountNotFound is returned when a requested mail account cannot be found.
var ErrMailAccountNotFound = errors.New("mail account not found")

// SaveMailAccount inserts or updates the IMAP credentials for a user/server pair.
func SaveMailAccount(ctx context.Context, pool *pgxpool.Pool, account *models.MailAccount) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO mail_accounts (
			user_id,
			imap_server_hostname,
			imap_username,
			encrypted_imap_password,
			enabled
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, imap_server_hostname, imap_username) DO UPDATE SET
			encrypted_imap_password = EXCLUDED.encrypted_imap_password,
			enabled = EXCLUDED.enabled,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`,
		account.UserID,
		account.IMAPServerHostname,
		account.IMAPUsername,
		account.EncryptedIMAPPassword,
		account.Enabled,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save mail account: %w", err)
	}

	return nil
}

// ListEnabledMailAccounts returns every account the poller should sync.
func ListEnabledMailAccounts(ctx context.Context, pool *pgxpool.Pool) ([]*models.MailAccount, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, imap_server_hostname, imap_username, encrypted_imap_password, enabled, created_at, updated_at
		FROM mail_accounts
		WHERE enabled
		ORDER BY created_at
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to list mail accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.MailAccount
	for rows.Next() {
		var account models.MailAccount
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.IMAPServerHostname,
			&account.IMAPUsername,
			&account.EncryptedIMAPPassword,
			&account.Enabled,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mail account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mail accounts: %w", err)
	}

	return accounts, nil
}

// GetMailAccount returns one account by id.
func GetMailAccount(ctx context.Context, pool *pgxpool.Pool, id string) (*models.MailAccount, error) {
	var account models.MailAccount

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, imap_server_hostname, imap_username, encrypted_imap_password, enabled, created_at, updated_at
		FROM mail_accounts
		WHERE id = $1
	`, id).Scan(
		&account.ID,
		&account.UserID,
		&account.IMAPServerHostname,
		&account.IMAPUsername,
		&account.EncryptedIMAPPassword,
		&account.Enabled,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMailAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get mail account: %w", err)
	}

	return &account, nil
}
