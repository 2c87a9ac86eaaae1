package smtpd

import (
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// NewServer builds the inbound SMTP listener around the backend with bounded
// timeouts and payload size.
func NewServer(backend *Backend, addr, domain string) *gosmtp.Server {
	server := gosmtp.NewServer(backend)
	server.Addr = addr
	server.Domain = domain
	server.ReadTimeout = 1 * time.Minute
	server.WriteTimeout = 1 * time.Minute
	server.MaxMessageBytes = 25 * 1024 * 1024
	server.MaxRecipients = 100

	return server
}
