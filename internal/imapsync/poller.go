package imapsync

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tbarna/mailroom/internal/db"
	"github.com/tbarna/mailroom/internal/models"
)

// Poller runs a recurring sync cycle over every enabled mail account. It is
// owned by the service lifecycle (canceled via context) rather than being
// ambient global state, and Tick can be called directly in tests.
type Poller struct {
	pool     *pgxpool.Pool
	syncer   *Syncer
	interval time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPoller creates a Poller with the given cycle interval.
func NewPoller(pool *pgxpool.Pool, syncer *Syncer, interval time.Duration, log *zap.Logger) *Poller {
	return &Poller{
		pool:     pool,
		syncer:   syncer,
		interval: interval,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

// Run blocks, executing one cycle per interval until the context is canceled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("imapsync: poller started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.log.Info("imapsync: poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one full cycle: every enabled account is synced concurrently, and
// a failure in one mailbox never aborts the others. An account still syncing
// from a previous cycle is skipped rather than overlapped.
func (p *Poller) Tick(ctx context.Context) {
	accounts, err := db.ListEnabledMailAccounts(ctx, p.pool)
	if err != nil {
		p.log.Error("imapsync: failed to list accounts for cycle", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, account := range accounts {
		if !p.tryAcquire(account.ID) {
			p.log.Debug("imapsync: previous sync still running, skipping",
				zap.String("account_id", account.ID))
			continue
		}

		wg.Add(1)
		go func(account *models.MailAccount) {
			defer wg.Done()
			defer p.release(account.ID)

			if err := p.syncer.SyncAccount(ctx, account); err != nil {
				// Logged, not raised. The next tick retries this mailbox.
				p.log.Warn("imapsync: account sync failed",
					zap.String("account_id", account.ID),
					zap.String("server", account.IMAPServerHostname),
					zap.Error(err))
			}
		}(account)
	}

	wg.Wait()
}

func (p *Poller) tryAcquire(accountID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inFlight[accountID]; busy {
		return false
	}
	p.inFlight[accountID] = struct{}{}
	return true
}

func (p *Poller) release(accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, accountID)
}
