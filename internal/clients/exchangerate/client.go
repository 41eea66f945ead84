// Package exchangerate fetches daily reference exchange rates from exchangerate-api.com.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public v4 endpoint
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Client for exchangerate-api.com
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new exchangerate-api.com client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "exchangerate-api").Logger(),
	}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// GetLatestRates returns one rate per quote currency: 1 base buys Rate quote on the
// publication date. The base itself and non-positive rates are omitted.
func (c *Client) GetLatestRates(ctx context.Context, base string) ([]domain.ExchangeRate, error) {
	base = strings.ToUpper(base)
	url := fmt.Sprintf("%s/%s", c.baseURL, base)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Base != "" && !strings.EqualFold(result.Base, base) {
		return nil, fmt.Errorf("API returned base %s, requested %s", result.Base, base)
	}

	date := utils.NormalizeDate(time.Now())
	if result.Date != "" {
		parsed, err := utils.ParseDate(result.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate date %q: %w", result.Date, err)
		}
		date = parsed
	}

	rates := make([]domain.ExchangeRate, 0, len(result.Rates))
	for quote, rate := range result.Rates {
		quote = strings.ToUpper(quote)
		if quote == base || !rate.IsPositive() {
			continue
		}
		rates = append(rates, domain.ExchangeRate{
			BaseCurrency:  base,
			QuoteCurrency: quote,
			Date:          date,
			Rate:          rate,
		})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].QuoteCurrency < rates[j].QuoteCurrency })

	c.log.Info().
		Str("base", base).
		Str("date", utils.FormatDate(date)).
		Int("rates", len(rates)).
		Msg("Fetched rates")

	return rates, nil
}

var _ domain.RateProvider = (*Client)(nil)
