// Package pricing keeps historical daily prices for held securities up to date.
package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SQLiteLock is a domain.DistributedLock backed by the sync_locks table.
// Acquisition is a single conditional upsert: the row is taken over only when
// its lease has expired.
type SQLiteLock struct {
	db  database.Querier
	now domain.Clock
	log zerolog.Logger
}

// NewSQLiteLock creates a lock backed by the ledger database
func NewSQLiteLock(db database.Querier, log zerolog.Logger) *SQLiteLock {
	return &SQLiteLock{
		db:  db,
		now: time.Now,
		log: log.With().Str("component", "sync_lock").Logger(),
	}
}

// SetClock overrides the time source.
func (l *SQLiteLock) SetClock(now domain.Clock) {
	l.now = now
}

// Acquire takes key for ttl and returns the owner token.
func (l *SQLiteLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", domain.Validationf("lock ttl must be positive")
	}

	token := uuid.New().String()
	now := l.now()

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_locks (lock_key, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(lock_key) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE sync_locks.expires_at <= ?
	`, key, token, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if affected == 0 {
		return "", domain.Lockedf("%s is held", key)
	}

	l.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Lock acquired")
	return token, nil
}

// Release frees key if token still owns it. Releasing a lost lease is not an error.
func (l *SQLiteLock) Release(ctx context.Context, key, token string) error {
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM sync_locks WHERE lock_key = ? AND owner = ?", key, token)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		l.log.Warn().Str("key", key).Msg("Lock lease was lost before release")
	}
	return nil
}

// DeleteExpired removes locks whose lease has ended and returns how many were removed.
func (l *SQLiteLock) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM sync_locks WHERE expires_at <= ?", l.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}
	return result.RowsAffected()
}

// MemoryLock is an in-process domain.DistributedLock.
type MemoryLock struct {
	mu     sync.Mutex
	leases map[string]lease
	now    domain.Clock
}

type lease struct {
	token   string
	expires time.Time
}

// NewMemoryLock creates an empty in-process lock
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (l *MemoryLock) SetClock(now domain.Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Acquire takes key for ttl and returns the owner token.
func (l *MemoryLock) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", domain.Validationf("lock ttl must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return "", domain.Lockedf("%s is held", key)
	}

	token := uuid.New().String()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	return token, nil
}

// Release frees key if token still owns it.
func (l *MemoryLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.leases[key]; ok && held.token == token {
		delete(l.leases, key)
	}
	return nil
}

var (
	_ domain.DistributedLock = (*SQLiteLock)(nil)
	_ domain.DistributedLock = (*MemoryLock)(nil)
)
