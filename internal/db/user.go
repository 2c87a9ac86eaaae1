package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when no local mailbox exists for an address.
var ErrUserNotFound = errors.New("user not found")

// GetOrCreateUser returns the user's id for the given email.
// If no user exists with that email, it creates a new one.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var userID string

	err := pool.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, email).Scan(&userID)

	if err != nil {
		return "", fmt.Errorf("failed to get or create user: %w", err)
	}

	return userID, nil
}

// GetUserIDByEmail looks up an existing local mailbox by address. Unlike
// GetOrCreateUser it never creates one; inbound delivery must not mint
// mailboxes for arbitrary recipients.
func GetUserIDByEmail(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	var userID string

	err := pool.QueryRow(ctx, `
		SELECT id FROM users WHERE email = $1
	`, email).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	return userID, nil
}

// GetUserEmail returns the address for a user id.
func GetUserEmail(ctx context.Context, pool *pgxpool.Pool, userID string) (string, error) {
	var email string

	err := pool.QueryRow(ctx, `
		SELECT email FROM users WHERE id = $1
	`, userID).Scan(&email)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get user email: %w", err)
	}

	return email, nil
}
