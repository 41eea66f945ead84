// Package domain provides core domain models and types shared by the ledger modules.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecimalScale is the number of fractional digits persisted for derived figures.
const DecimalScale int32 = 10

// PortfolioType distinguishes portfolios that hold securities from cash-only ones
type PortfolioType string

const (
	PortfolioTypeInvestment PortfolioType = "investment"
	PortfolioTypeCash       PortfolioType = "cash"
)

// Valid reports whether t is a known portfolio type.
func (t PortfolioType) Valid() bool {
	return t == PortfolioTypeInvestment || t == PortfolioTypeCash
}

// Portfolio is a user-owned container of holdings and cash balances.
type Portfolio struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Name        string        `json:"name"`
	Type        PortfolioType `json:"type"`
	Enabled     bool          `json:"enabled"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Security is a tradable instrument maintained by the provider sync.
type Security struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Name           string     `json:"name"`
	Currency       string     `json:"currency"`
	Provider       string     `json:"provider"`
	ProviderSymbol string     `json:"provider_symbol"`
	LastSynced     *time.Time `json:"last_synced,omitempty"`
}

// QuoteSymbol returns the symbol to request from the pricing provider.
func (s Security) QuoteSymbol() string {
	if s.ProviderSymbol != "" {
		return s.ProviderSymbol
	}
	return s.Symbol
}

// HoldingKey identifies a holding.
type HoldingKey struct {
	PortfolioID string `json:"portfolio_id"`
	SecurityID  string `json:"security_id"`
}

// Holding is the quantity and cost basis of one security within one portfolio.
// CostBasis is in Currency, RefCostBasis in the owner's base currency.
type Holding struct {
	PortfolioID  string          `json:"portfolio_id"`
	SecurityID   string          `json:"security_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	RefCostBasis decimal.Decimal `json:"ref_cost_basis"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Key returns the holding's key.
func (h Holding) Key() HoldingKey {
	return HoldingKey{PortfolioID: h.PortfolioID, SecurityID: h.SecurityID}
}

// TransactionCategory is the kind of investment transaction.
type TransactionCategory string

const (
	CategoryBuy      TransactionCategory = "buy"
	CategorySell     TransactionCategory = "sell"
	CategoryDividend TransactionCategory = "dividend"
	CategoryFee      TransactionCategory = "fee"
)

// Valid reports whether c is a known category.
func (c TransactionCategory) Valid() bool {
	switch c {
	case CategoryBuy, CategorySell, CategoryDividend, CategoryFee:
		return true
	}
	return false
}

// AffectsPosition reports whether the category changes quantity and cost basis.
func (c TransactionCategory) AffectsPosition() bool {
	return c == CategoryBuy || c == CategorySell
}

// InvestmentTransaction is one buy/sell/dividend/fee against a holding.
// Seq is assigned at creation and breaks ties between same-date transactions.
type InvestmentTransaction struct {
	ID          string              `json:"id"`
	Seq         int64               `json:"seq"`
	UserID      string              `json:"user_id"`
	PortfolioID string              `json:"portfolio_id"`
	SecurityID  string              `json:"security_id"`
	Category    TransactionCategory `json:"category"`
	Date        time.Time           `json:"date"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Price       decimal.Decimal     `json:"price"`
	Fees        decimal.Decimal     `json:"fees"`
	Amount      decimal.Decimal     `json:"amount"`
	RefAmount   decimal.Decimal     `json:"ref_amount"`
	RefPrice    decimal.Decimal     `json:"ref_price"`
	RefFees     decimal.Decimal     `json:"ref_fees"`
	Currency    string              `json:"currency"`
	Description string              `json:"description"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// HoldingKey returns the key of the holding this transaction belongs to.
func (t InvestmentTransaction) HoldingKey() HoldingKey {
	return HoldingKey{PortfolioID: t.PortfolioID, SecurityID: t.SecurityID}
}

// PortfolioBalance is the cash of one currency within one portfolio.
// Available is free to trade; Total includes reserved or in-transit cash.
type PortfolioBalance struct {
	PortfolioID      string          `json:"portfolio_id"`
	Currency         string          `json:"currency"`
	AvailableCash    decimal.Decimal `json:"available_cash"`
	TotalCash        decimal.Decimal `json:"total_cash"`
	RefAvailableCash decimal.Decimal `json:"ref_available_cash"`
	RefTotalCash     decimal.Decimal `json:"ref_total_cash"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PortfolioTransfer moves cash between two portfolios, or between a
// portfolio and an external cash account when one side is nil.
type PortfolioTransfer struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	FromPortfolioID     *string         `json:"from_portfolio_id,omitempty"`
	ToPortfolioID       *string         `json:"to_portfolio_id,omitempty"`
	Currency            string          `json:"currency"`
	Amount              decimal.Decimal `json:"amount"`
	Date                time.Time       `json:"date"`
	LinkedTransactionID *string         `json:"linked_transaction_id,omitempty"`
	Description         string          `json:"description"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ExchangeRate means one unit of BaseCurrency buys Rate units of QuoteCurrency on Date.
type ExchangeRate struct {
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	Date          time.Time       `json:"date"`
	Rate          decimal.Decimal `json:"rate"`
}

// AccountTransaction is a cash-account record outside the investment subsystem.
type AccountTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	IsTransfer  bool            `json:"is_transfer"`
	OutOfWallet bool            `json:"out_of_wallet"`
	TransferID  *string         `json:"transfer_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PricePoint is one daily close returned by a pricing provider.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}
