package universe

import (
	"sort"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// Day-over-day moves outside [-90%, +1000%] are treated as provider glitches
	maxCloseRatio = decimal.NewFromInt(11)
	minCloseRatio = decimal.RequireFromString("0.1")
)

// RejectedPrice records a provider close that was dropped
type RejectedPrice struct {
	Point  domain.PricePoint
	Reason string
}

// PriceValidator filters abnormal closes out of provider data before storage
type PriceValidator struct {
	log zerolog.Logger
}

// NewPriceValidator creates a new price validator
func NewPriceValidator(log zerolog.Logger) *PriceValidator {
	return &PriceValidator{
		log: log.With().Str("component", "price_validator").Logger(),
	}
}

// ValidatePrice checks a close against the previous accepted close (nil when none).
// Returns (isValid, reason).
func (v *PriceValidator) ValidatePrice(p domain.PricePoint, prev *domain.PricePoint) (bool, string) {
	if !p.Close.IsPositive() {
		return false, "non_positive_close"
	}
	if prev == nil {
		return true, ""
	}

	ratio := p.Close.DivRound(prev.Close, 8)
	if ratio.GreaterThan(maxCloseRatio) {
		return false, "spike_detected"
	}
	if ratio.LessThan(minCloseRatio) {
		return false, "crash_detected"
	}
	return true, ""
}

// Filter sorts prices by date, collapses duplicate dates (last wins) and drops invalid closes.
func (v *PriceValidator) Filter(prices []domain.PricePoint) ([]domain.PricePoint, []RejectedPrice) {
	byDate := make(map[int64]domain.PricePoint, len(prices))
	for _, p := range prices {
		p.Date = utils.NormalizeDate(p.Date)
		byDate[p.Date.Unix()] = p
	}

	sorted := make([]domain.PricePoint, 0, len(byDate))
	for _, p := range byDate {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	accepted := make([]domain.PricePoint, 0, len(sorted))
	var rejected []RejectedPrice
	var prev *domain.PricePoint
	for _, p := range sorted {
		if ok, reason := v.ValidatePrice(p, prev); !ok {
			rejected = append(rejected, RejectedPrice{Point: p, Reason: reason})
			continue
		}
		accepted = append(accepted, p)
		prev = &accepted[len(accepted)-1]
	}

	if len(rejected) > 0 {
		v.log.Warn().
			Int("rejected", len(rejected)).
			Int("accepted", len(accepted)).
			Msg("Dropped abnormal provider prices")
	}

	return accepted, rejected
}
