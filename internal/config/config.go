package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	MailDomain          string
	SMTPListenAddr      string
	SMTPRelayHostname   string
	SMTPRelayUsername   string
	SMTPRelayPassword   string
	IMAPUseTLS          bool
	PollInterval        time.Duration
	LogLevel            string
	LogFile             string
	Timezone            string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILROOM_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	pollInterval, err := time.ParseDuration(getEnvOrDefault("MAILROOM_POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAILROOM_POLL_INTERVAL: %w", err)
	}

	imapUseTLS, err := strconv.ParseBool(getEnvOrDefault("MAILROOM_IMAP_USE_TLS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAILROOM_IMAP_USE_TLS: %w", err)
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("MAILROOM_ENCRYPTION_KEY_BASE64"),
		DBHost:              getEnvOrDefault("MAILROOM_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("MAILROOM_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("MAILROOM_DB_USER", "mailroom"),
		DBPassword:          os.Getenv("MAILROOM_DB_PASSWORD"),
		DBName:              getEnvOrDefault("MAILROOM_DB_NAME", "mailroom"),
		DBSSLMode:           getEnvOrDefault("MAILROOM_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		MailDomain:          os.Getenv("MAILROOM_MAIL_DOMAIN"),
		SMTPListenAddr:      getEnvOrDefault("MAILROOM_SMTP_LISTEN_ADDR", ":2525"),
		SMTPRelayHostname:   os.Getenv("MAILROOM_SMTP_RELAY_HOSTNAME"),
		SMTPRelayUsername:   os.Getenv("MAILROOM_SMTP_RELAY_USERNAME"),
		SMTPRelayPassword:   os.Getenv("MAILROOM_SMTP_RELAY_PASSWORD"),
		IMAPUseTLS:          imapUseTLS,
		PollInterval:        pollInterval,
		LogLevel:            getEnvOrDefault("MAILROOM_LOG_LEVEL", "info"),
		LogFile:             os.Getenv("MAILROOM_LOG_FILE"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("MAILROOM_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.MailDomain == "" {
		return fmt.Errorf("MAILROOM_MAIL_DOMAIN is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("MAILROOM_DB_PASSWORD is required")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("MAILROOM_POLL_INTERVAL must be positive")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
