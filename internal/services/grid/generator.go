package grid

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

// GenerateLevels builds the level set for a configuration seeded at currentPrice.
// Buy levels are sequenced across [min, currentPrice], sell levels across
// [currentPrice, max]; the seed price itself is excluded from both sides so
// every buy sits strictly below it and every sell strictly above. Odd order
// counts put the extra level on the sell side, an explicit policy rather than
// an accident of integer division.
//
// Levels are returned sorted by descending price. Validation failures reject
// the whole configuration before any level exists.
func GenerateLevels(cfg domain.GridConfiguration, currentPrice decimal.Decimal) ([]domain.GridLevel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if currentPrice.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Wrap(domain.ErrInvalidConfiguration, "current price must be positive")
	}

	// a seed outside the range is a breakout, not an error: the split point is
	// clamped so the whole grid lands on one side of the seed
	seed := currentPrice
	if seed.LessThan(cfg.PriceRange.Min) {
		seed = cfg.PriceRange.Min
	}
	if seed.GreaterThan(cfg.PriceRange.Max) {
		seed = cfg.PriceRange.Max
	}

	buyCount := cfg.OrderCount / 2
	sellCount := cfg.OrderCount - buyCount

	levels := make([]domain.GridLevel, 0, cfg.OrderCount)

	// one extra point on each side's sequence, then drop the point that
	// coincides with the seed price
	buyPrices, err := Sequence(cfg.PriceRange.Min, seed, buyCount+1, cfg.Strategy)
	if err != nil {
		return nil, errors.Wrap(err, "sequence buy levels")
	}
	buyAmount := cfg.BaseAmount.Div(decimal.NewFromInt(int64(buyCount)))
	for i := 0; i < buyCount; i++ {
		levels = append(levels, domain.GridLevel{
			ID:     fmt.Sprintf("buy-%d", i),
			Price:  buyPrices[i],
			Side:   domain.SideBuy,
			Amount: buyAmount,
		})
	}

	sellPrices, err := Sequence(seed, cfg.PriceRange.Max, sellCount+1, cfg.Strategy)
	if err != nil {
		return nil, errors.Wrap(err, "sequence sell levels")
	}
	sellAmount := cfg.BaseAmount.Div(decimal.NewFromInt(int64(sellCount)))
	for i := 0; i < sellCount; i++ {
		levels = append(levels, domain.GridLevel{
			ID:     fmt.Sprintf("sell-%d", i),
			Price:  sellPrices[i+1],
			Side:   domain.SideSell,
			Amount: sellAmount,
		})
	}

	sort.Slice(levels, func(i, j int) bool {
		if levels[i].Price.Equal(levels[j].Price) {
			return levels[i].ID < levels[j].ID
		}
		return levels[i].Price.GreaterThan(levels[j].Price)
	})

	return levels, nil
}
