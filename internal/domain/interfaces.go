package domain

import (
	"context"
	"time"
)

// PriceProvider supplies historical daily closes for a symbol.
// Implementations perform network I/O and must never be called while a
// database transaction is open.
type PriceProvider interface {
	GetHistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
}

// RateProvider supplies the latest published exchange rates for a base currency.
type RateProvider interface {
	GetLatestRates(ctx context.Context, base string) ([]ExchangeRate, error)
}

// DistributedLock provides mutual exclusion keyed by string with a time-to-live.
// Acquire returns a token identifying the holder, or an ErrLocked error when
// another holder's lease has not expired.
type DistributedLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// PricePrimer schedules best-effort historical price backfills.
type PricePrimer interface {
	PrimeAsync(securityID string)
}

// Clock returns the current time. Injected so "now" conversions are testable.
type Clock func() time.Time
