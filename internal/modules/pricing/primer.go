package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/universe"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
)

const (
	// DefaultLockTTL bounds how long a crashed backfill can block the next one
	DefaultLockTTL = 10 * time.Minute
	// DefaultPrimeTimeout bounds one asynchronous backfill
	DefaultPrimeTimeout = 2 * time.Minute
	// SeedYears of history are fetched for a security with no stored prices
	SeedYears = 10
)

// LockKey returns the sync lock key for a security.
func LockKey(securityID string) string {
	return "security-sync:" + securityID
}

// PrimeResult summarizes one backfill
type PrimeResult struct {
	SecurityID string
	From       time.Time
	To         time.Time
	Fetched    int
	Stored     int
	Rejected   int
}

// Primer backfills historical daily closes for a security.
// Network I/O happens outside any database transaction; the fetched window
// is written in one transaction afterwards.
type Primer struct {
	db        *sql.DB
	provider  domain.PriceProvider
	lock      domain.DistributedLock
	validator *universe.PriceValidator
	lockTTL   time.Duration
	timeout   time.Duration
	now       domain.Clock
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewPrimer creates a primer. lock serializes backfills per security.
func NewPrimer(db *sql.DB, provider domain.PriceProvider, lock domain.DistributedLock, log zerolog.Logger) *Primer {
	return &Primer{
		db:        db,
		provider:  provider,
		lock:      lock,
		validator: universe.NewPriceValidator(log),
		lockTTL:   DefaultLockTTL,
		timeout:   DefaultPrimeTimeout,
		now:       time.Now,
		log:       log.With().Str("service", "price_primer").Logger(),
	}
}

// SetClock overrides the time source.
func (p *Primer) SetClock(now domain.Clock) {
	p.now = now
}

// SetTimeouts overrides the lock lease and the per-backfill timeout.
func (p *Primer) SetTimeouts(lockTTL, timeout time.Duration) {
	if lockTTL > 0 {
		p.lockTTL = lockTTL
	}
	if timeout > 0 {
		p.timeout = timeout
	}
}

// Prime fetches and stores missing daily closes for securityID.
// Returns an ErrLocked error when another backfill for the security is running.
func (p *Primer) Prime(ctx context.Context, securityID string) (*PrimeResult, error) {
	key := LockKey(securityID)
	token, err := p.lock.Acquire(ctx, key, p.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := p.lock.Release(context.Background(), key, token); err != nil {
			p.log.Warn().Err(err).Str("security_id", securityID).Msg("Failed to release sync lock")
		}
	}()

	securities := universe.NewSecurityRepository(p.db, p.log)
	history := universe.NewHistoryDB(p.db, p.log)

	sec, err := securities.GetByID(ctx, securityID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, domain.NotFoundf("security %s", securityID)
	}

	latest, err := history.LatestPriceDate(ctx, securityID)
	if err != nil {
		return nil, err
	}

	now := p.now()
	result := &PrimeResult{
		SecurityID: securityID,
		To:         utils.NormalizeDate(now),
	}
	if latest == nil {
		result.From = result.To.AddDate(-SeedYears, 0, 0)
	} else {
		result.From = latest.AddDate(0, 0, 1)
	}

	if result.From.After(result.To) {
		p.log.Debug().Str("security_id", securityID).Msg("Prices already up to date")
		return result, securities.TouchLastSynced(ctx, securityID, now)
	}

	points, err := p.provider.GetHistoricalPrices(ctx, sec.QuoteSymbol(), result.From, result.To)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices for %s: %w", sec.QuoteSymbol(), err)
	}
	result.Fetched = len(points)

	accepted, rejected := p.validator.Filter(points)
	result.Rejected = len(rejected)

	err = database.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		stored, err := history.WithTx(tx).UpsertDailyPrices(ctx, securityID, accepted)
		if err != nil {
			return err
		}
		result.Stored = stored
		return securities.WithTx(tx).TouchLastSynced(ctx, securityID, now)
	})
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Str("security_id", securityID).
		Str("symbol", sec.QuoteSymbol()).
		Str("from", utils.FormatDate(result.From)).
		Str("to", utils.FormatDate(result.To)).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("rejected", result.Rejected).
		Msg("Primed historical prices")

	return result, nil
}

// PrimeAsync runs Prime in the background. Failures are logged only; a held
// lock means a backfill is already in progress.
func (p *Primer) PrimeAsync(securityID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if _, err := p.Prime(ctx, securityID); err != nil {
			if errors.Is(err, domain.ErrLocked) {
				p.log.Debug().Str("security_id", securityID).Msg("Price backfill already in progress")
				return
			}
			p.log.Warn().Err(err).Str("security_id", securityID).Msg("Price priming failed")
		}
	}()
}

// Wait blocks until all asynchronous backfills have finished.
func (p *Primer) Wait() {
	p.wg.Wait()
}

var _ domain.PricePrimer = (*Primer)(nil)
