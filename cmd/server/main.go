package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/api"
	"github.com/tbarna/mailroom/internal/auth"
	"github.com/tbarna/mailroom/internal/config"
	"github.com/tbarna/mailroom/internal/crypto"
	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/imapsync"
	"github.com/tbarna/mailroom/internal/ingest"
	"github.com/tbarna/mailroom/internal/logger"
	"github.com/tbarna/mailroom/internal/mailbox"
	"github.com/tbarna/mailroom/internal/send"
	"github.com/tbarna/mailroom/internal/smtpd"
	ws "github.com/tbarna/mailroom/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Environment == "development",
		LogFile:     cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		logg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.CloseConnection(pool)

	logg.Info("Connected to database", zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		logg.Fatal("Failed to create encryptor", zap.Error(err))
	}

	hub := ws.NewHub(10, logg)
	writer := ingest.NewWriter(pool, hub, logg)

	// Inbound SMTP: accepts mail for the local domain and writes it to INBOX.
	smtpBackend := smtpd.NewBackend(pool, writer, cfg.MailDomain, logg)
	smtpServer := smtpd.NewServer(smtpBackend, cfg.SMTPListenAddr, cfg.MailDomain)
	go func() {
		logg.Info("SMTP server listening", zap.String("addr", cfg.SMTPListenAddr))
		if err := smtpServer.ListenAndServe(); err != nil {
			logg.Error("SMTP server stopped", zap.Error(err))
		}
	}()

	// Remote mailbox sync: periodic polling plus IDLE listeners where the
	// remote server supports push.
	syncer := imapsync.NewSyncer(writer, encryptor, cfg.IMAPUseTLS, logg)
	poller := imapsync.NewPoller(pool, syncer, cfg.PollInterval, logg)
	go poller.Run(ctx)
	startIdleListeners(ctx, pool, syncer, logg)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewServer(cfg, pool, hub, writer, logg),
	}

	go func() {
		logg.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr), zap.String("environment", cfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Warn("HTTP shutdown did not finish cleanly", zap.Error(err))
	}
	if err := smtpServer.Close(); err != nil {
		logg.Warn("SMTP shutdown did not finish cleanly", zap.Error(err))
	}
}

// NewServer creates the HTTP handler for the API, with every route behind the
// proxy-identity middleware.
func NewServer(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, writer *ingest.Writer, logg *zap.Logger) http.Handler {
	mailboxService := mailbox.NewService(pool, logg)
	transport := send.NewSMTPTransport(cfg.SMTPRelayHostname, cfg.SMTPRelayUsername, cfg.SMTPRelayPassword)
	sender := send.NewSender(transport, writer, cfg.MailDomain, logg)

	messagesHandler := api.NewMessagesHandler(pool, mailboxService, logg)
	mutateHandler := api.NewMutateHandler(pool, mailboxService, logg)
	sendHandler := api.NewSendHandler(pool, sender, logg)
	wsHandler := api.NewWebSocketHandler(pool, hub, logg)

	requireIdentity := auth.RequireIdentity(cfg.MailDomain, logg)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/messages", requireIdentity(http.HandlerFunc(messagesHandler.GetMessages)))
	mux.Handle("/api/v1/counts", requireIdentity(http.HandlerFunc(messagesHandler.GetCounts)))
	mux.Handle("/api/v1/send", requireIdentity(methodOnly(http.MethodPost, sendHandler.PostSend)))
	mux.Handle("/api/v1/ws", requireIdentity(http.HandlerFunc(wsHandler.Handle)))

	// Handle /api/v1/messages/{message_id} and /api/v1/messages/bulk.
	mux.Handle("/api/v1/messages/", requireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/messages/")
		if rest == "" || strings.Contains(rest, "/") {
			http.Error(w, "message_id is required", http.StatusBadRequest)
			return
		}

		if rest == "bulk" {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			mutateHandler.PostBulk(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			messagesHandler.GetMessage(w, r, rest)
		case http.MethodPatch:
			mutateHandler.PatchMessage(w, r, rest)
		case http.MethodDelete:
			mutateHandler.DeleteMessage(w, r, rest)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	return mux
}

// startIdleListeners launches an IDLE listener for every enabled account so
// new mail is picked up between poll ticks.
func startIdleListeners(ctx context.Context, pool *pgxpool.Pool, syncer *imapsync.Syncer, logg *zap.Logger) {
	accounts, err := db.ListEnabledMailAccounts(ctx, pool)
	if err != nil {
		logg.Warn("Failed to list accounts for IDLE listeners, relying on polling only", zap.Error(err))
		return
	}

	for _, account := range accounts {
		go syncer.StartIdleListener(ctx, account)
	}
}

func methodOnly(method string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Mailroom API is running"))
}
