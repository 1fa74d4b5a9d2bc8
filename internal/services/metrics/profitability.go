// Package metrics derives profitability and risk figures from a grid
// configuration, its level set and externally supplied market conditions.
// Everything here is a pure function of its inputs.
package metrics

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

const (
	// fillsPerDayCalibration converts volatility x volume into an expected
	// daily fill count. A calibration heuristic, not derived from first
	// principles; treat projections built on it as estimates.
	fillsPerDayCalibration = 10.0
	daysPerYear            = 365.0
	// feeMargin is the +0.1% cushion applied to the break-even price.
	feeMargin = 1.001
)

// ProfitabilityMetrics summarizes what a grid could earn and how far the
// price can run before leaving the range.
type ProfitabilityMetrics struct {
	// EstimatedProfit is an annualized projection, not a guarantee.
	EstimatedProfit decimal.Decimal `json:"estimated_profit"`
	// BreakEvenPrice is the amount-weighted average level price plus fees.
	BreakEvenPrice decimal.Decimal `json:"break_even_price"`
	// MaxDrawdown is the worst-case relative distance to a range boundary,
	// not a realized loss.
	MaxDrawdown float64 `json:"max_drawdown"`
	// ExpectedFillsPerDay is the heuristic daily fill count the projection
	// is built on.
	ExpectedFillsPerDay float64 `json:"expected_fills_per_day"`
}

// Profitability computes projection metrics for a level set seeded from cfg
// at currentPrice under the given market conditions.
func Profitability(cfg domain.GridConfiguration, levels []domain.GridLevel, currentPrice decimal.Decimal, cond domain.MarketConditions) ProfitabilityMetrics {
	levelCount := len(levels)
	if levelCount == 0 || currentPrice.LessThanOrEqual(decimal.Zero) {
		return ProfitabilityMetrics{}
	}

	avgSpacing := cfg.PriceRange.Width().Div(decimal.NewFromInt(int64(levelCount)))
	profitPerFill := avgSpacing.Mul(cfg.BaseAmount).Div(decimal.NewFromInt(int64(levelCount)))

	fillsPerDay := cond.Volatility * cond.Volume * fillsPerDayCalibration
	estimated := profitPerFill.Mul(decimal.NewFromFloat(fillsPerDay * daysPerYear))

	return ProfitabilityMetrics{
		EstimatedProfit:     estimated,
		BreakEvenPrice:      breakEvenPrice(levels),
		MaxDrawdown:         maxDrawdown(cfg.PriceRange, currentPrice),
		ExpectedFillsPerDay: fillsPerDay,
	}
}

// breakEvenPrice is the amount-weighted average of all level prices with the
// fee margin applied.
func breakEvenPrice(levels []domain.GridLevel) decimal.Decimal {
	weighted := decimal.Zero
	totalAmount := decimal.Zero
	for _, l := range levels {
		weighted = weighted.Add(l.Price.Mul(l.Amount))
		totalAmount = totalAmount.Add(l.Amount)
	}
	if totalAmount.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(totalAmount).Mul(decimal.NewFromFloat(feeMargin))
}

// maxDrawdown is max(current-min, max-current) / current.
func maxDrawdown(r domain.PriceRange, current decimal.Decimal) float64 {
	down := current.Sub(r.Min)
	up := r.Max.Sub(current)
	worst := down
	if up.GreaterThan(down) {
		worst = up
	}
	return worst.Div(current).InexactFloat64()
}
