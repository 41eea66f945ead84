package holdings

import (
	"sort"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// proportionScale bounds the precision of the sold fraction on partial sells.
const proportionScale int32 = 20

// Position is the quantity and cost basis derived by replaying a holding's history.
type Position struct {
	Quantity     decimal.Decimal
	CostBasis    decimal.Decimal
	RefCostBasis decimal.Decimal
}

// Equal reports whether two positions match exactly.
func (p Position) Equal(o Position) bool {
	return p.Quantity.Equal(o.Quantity) &&
		p.CostBasis.Equal(o.CostBasis) &&
		p.RefCostBasis.Equal(o.RefCostBasis)
}

// PositionOf returns the stored position of a holding.
func PositionOf(h domain.Holding) Position {
	return Position{Quantity: h.Quantity, CostBasis: h.CostBasis, RefCostBasis: h.RefCostBasis}
}

// Replay derives a position from zero using weighted-average cost.
// Transactions are processed in (date, seq) order regardless of input order.
//
//   - buy adds quantity, amount+fees to cost and refAmount+refFees to ref cost
//   - sell removes quantity and the sold fraction of both costs; selling from an
//     empty or negative position reduces no cost
//   - dividend and fee leave the position unchanged
//
// The result is rounded to domain.DecimalScale.
func Replay(history []domain.InvestmentTransaction) Position {
	ordered := make([]domain.InvestmentTransaction, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	qty := decimal.Zero
	cost := decimal.Zero
	refCost := decimal.Zero

	for _, tx := range ordered {
		switch tx.Category {
		case domain.CategoryBuy:
			qty = qty.Add(tx.Quantity)
			cost = cost.Add(tx.Amount).Add(tx.Fees)
			refCost = refCost.Add(tx.RefAmount).Add(tx.RefFees)

		case domain.CategorySell:
			if qty.IsPositive() {
				proportion := tx.Quantity.DivRound(qty, proportionScale)
				cost = cost.Sub(cost.Mul(proportion))
				refCost = refCost.Sub(refCost.Mul(proportion))
			}
			qty = qty.Sub(tx.Quantity)
		}
	}

	return Position{
		Quantity:     qty.Round(domain.DecimalScale),
		CostBasis:    cost.Round(domain.DecimalScale),
		RefCostBasis: refCost.Round(domain.DecimalScale),
	}
}
