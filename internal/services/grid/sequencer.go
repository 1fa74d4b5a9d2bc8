// Package grid implements the grid strategy engine: level price sequencing,
// level generation from a configuration and fill simulation against price ticks.
package grid

import (
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

// adaptiveExponent bends the interpolation curve so that adaptive spacing
// concentrates levels near the lower bound.
const adaptiveExponent = 0.8

// Sequence returns count prices spanning [min, max], ordered ascending.
// It is pure and fully deterministic given its inputs.
//
// Spacing math runs on float64 because geometric and adaptive strategies need
// fractional exponents; the exact decimal bounds are re-applied to the first
// and last element so endpoints never drift.
func Sequence(min, max decimal.Decimal, count int, strategy domain.Strategy) ([]decimal.Decimal, error) {
	if count < 1 {
		return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "count %d must be at least 1", count)
	}
	if min.GreaterThan(max) {
		return nil, errors.Wrapf(domain.ErrInvalidRange, "min %s above max %s", min, max)
	}

	if count == 1 {
		mid := min.Add(max).Div(decimal.NewFromInt(2))
		return []decimal.Decimal{mid}, nil
	}

	minF := min.InexactFloat64()
	maxF := max.InexactFloat64()
	steps := float64(count - 1)

	prices := make([]decimal.Decimal, count)
	switch strategy {
	case domain.StrategyArithmetic:
		for i := 0; i < count; i++ {
			prices[i] = decimal.NewFromFloat(minF + (maxF-minF)*float64(i)/steps)
		}
	case domain.StrategyGeometric:
		if min.LessThanOrEqual(decimal.Zero) {
			return nil, errors.Wrap(domain.ErrInvalidRange, "geometric spacing requires a positive lower bound")
		}
		ratio := math.Pow(maxF/minF, 1/steps)
		for i := 0; i < count; i++ {
			prices[i] = decimal.NewFromFloat(minF * math.Pow(ratio, float64(i)))
		}
	case domain.StrategyAdaptive:
		for i := 0; i < count; i++ {
			progress := math.Pow(float64(i)/steps, adaptiveExponent)
			prices[i] = decimal.NewFromFloat(minF + (maxF-minF)*progress)
		}
	default:
		return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "unknown strategy %q", strategy)
	}

	prices[0] = min
	prices[count-1] = max

	return prices, nil
}
