// Package yahoo provides a historical price client for the Yahoo Finance v8 chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://query2.finance.yahoo.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// ErrNoResult is returned when the chart API has no data for a symbol
var ErrNoResult = errors.New("yahoo: no result")

// Client fetches daily closes from Yahoo Finance
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     log.With().Str("client", "yahoo").Logger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetHistoricalPrices returns daily closes for symbol between from and to (inclusive).
// Days without a close are skipped.
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]domain.PricePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", utils.DateToUnix(from)))
	q.Set("period2", fmt.Sprintf("%d", utils.DateToUnix(to)+24*60*60))
	q.Set("interval", "1d")
	q.Set("events", "history")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "sentinel-ledger/1.0")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Error().Err(err).Str("symbol", symbol).Dur("elapsed", elapsed).Msg("Yahoo chart request failed")
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w for %s", ErrNoResult, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Str("symbol", symbol).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo chart non-OK response")
		return nil, fmt.Errorf("yahoo chart error: status %d for %s", resp.StatusCode, symbol)
	}

	var raw chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("%w for %s: %s", ErrNoResult, symbol, raw.Chart.Error.Description)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoResult, symbol)
	}

	result := raw.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	fromDate := utils.NormalizeDate(from)
	toDate := utils.NormalizeDate(to)

	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		date := utils.NormalizeDate(time.Unix(ts, 0))
		if date.Before(fromDate) || date.After(toDate) {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:  date,
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("points", len(points)).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("Yahoo chart call")

	return points, nil
}

var _ domain.PriceProvider = (*Client)(nil)
