package testing

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/utils"
)

// Fixture identifiers shared across module tests
const (
	TestUserID       = "user-1"
	OtherUserID      = "user-2"
	TestPortfolioID  = "portfolio-a"
	OtherPortfolioID = "portfolio-b"
	TestSecurityID   = "sec-aapl"
)

// SeedUser inserts a user with the given base currency.
func SeedUser(t *testing.T, db *database.DB, userID, baseCurrency string) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO users (id, base_currency, updated_at) VALUES (?, ?, ?)`,
		userID, baseCurrency, time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("Failed to seed user %s: %v", userID, err)
	}
}

// SeedPortfolio inserts an enabled portfolio of the given type ("investment" or "cash").
func SeedPortfolio(t *testing.T, db *database.DB, id, userID, portfolioType string) {
	t.Helper()
	now := time.Now().Unix()
	_, err := db.Conn().Exec(
		`INSERT INTO portfolios (id, user_id, name, type, enabled, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, '', ?, ?)`,
		id, userID, "Portfolio "+id, portfolioType, now, now,
	)
	if err != nil {
		t.Fatalf("Failed to seed portfolio %s: %v", id, err)
	}
}

// SeedSecurity inserts a security settled in currency.
func SeedSecurity(t *testing.T, db *database.DB, id, symbol, currency string) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO securities (id, symbol, name, currency, provider, provider_symbol)
		 VALUES (?, ?, ?, ?, 'yahoo', ?)`,
		id, symbol, symbol, currency, symbol,
	)
	if err != nil {
		t.Fatalf("Failed to seed security %s: %v", id, err)
	}
}

// SeedRate inserts an exchange rate: 1 base = rate quote on date (YYYY-MM-DD).
func SeedRate(t *testing.T, db *database.DB, base, quote, date, rate string) {
	t.Helper()
	_, err := db.Conn().Exec(
		`INSERT INTO exchange_rates (base_currency, quote_currency, date, rate) VALUES (?, ?, ?, ?)`,
		base, quote, utils.DateToUnix(utils.MustParseDate(date)), rate,
	)
	if err != nil {
		t.Fatalf("Failed to seed rate %s/%s on %s: %v", base, quote, date, err)
	}
}

// SeedLedger seeds the default fixture set: a USD user owning one investment
// portfolio, another user's portfolio, and one USD security.
func SeedLedger(t *testing.T, db *database.DB) {
	t.Helper()
	SeedUser(t, db, TestUserID, "USD")
	SeedUser(t, db, OtherUserID, "EUR")
	SeedPortfolio(t, db, TestPortfolioID, TestUserID, "investment")
	SeedPortfolio(t, db, OtherPortfolioID, OtherUserID, "investment")
	SeedSecurity(t, db, TestSecurityID, "AAPL", "USD")
}
