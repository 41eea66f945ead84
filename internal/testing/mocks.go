package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockPriceProvider is a mock implementation of domain.PriceProvider for testing
type MockPriceProvider struct {
	mock.Mock
}

// GetHistoricalPrices records the call and returns the configured prices
func (m *MockPriceProvider) GetHistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]domain.PricePoint, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PricePoint), args.Error(1)
}

// MockRateProvider is a mock implementation of domain.RateProvider for testing
type MockRateProvider struct {
	mock.Mock
}

// GetLatestRates records the call and returns the configured rates
func (m *MockRateProvider) GetLatestRates(ctx context.Context, base string) ([]domain.ExchangeRate, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExchangeRate), args.Error(1)
}

// RecordingPrimer is a domain.PricePrimer that records requested security ids
type RecordingPrimer struct {
	mu  sync.Mutex
	ids []string
}

// PrimeAsync records securityID
func (p *RecordingPrimer) PrimeAsync(securityID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, securityID)
}

// Primed returns the recorded security ids
func (p *RecordingPrimer) Primed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}
