package imapsync

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

// connectTimeout bounds the dial so an unreachable mailbox cannot hang a sync
// cycle.
const connectTimeout = 5 * time.Second

// commandTimeout bounds each IMAP command after the connection is up.
const commandTimeout = 30 * time.Second

// Connect dials the IMAP server with a bounded timeout.
// useTLS: true for production (TLS), false for tests (non-TLS).
func Connect(server string, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout: connectTimeout,
	}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, server, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial with TLS: %w", err)
		}
		return c, nil
	}

	// Non-TLS connection for testing
	c, err := client.DialWithDialer(dialer, server)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	return c, nil
}

// Login authenticates with the IMAP server.
func Login(c *client.Client, username, password string) error {
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	return nil
}
