package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

func testConfig() domain.GridConfiguration {
	return domain.GridConfiguration{
		PriceRange: domain.PriceRange{
			Min: decimal.NewFromInt(90),
			Max: decimal.NewFromInt(110),
		},
		OrderCount: 10,
		Strategy:   domain.StrategyArithmetic,
		BaseAmount: decimal.NewFromInt(100),
	}
}

func levelAt(id string, price, amount int64) domain.GridLevel {
	return domain.GridLevel{
		ID:     id,
		Price:  decimal.NewFromInt(price),
		Amount: decimal.NewFromInt(amount),
	}
}

func TestProfitability(t *testing.T) {
	cfg := testConfig()
	levels := []domain.GridLevel{
		levelAt("buy-0", 95, 10),
		levelAt("sell-0", 105, 10),
	}
	cond := domain.MarketConditions{Volatility: 0.02, Volume: 1.5}

	m := Profitability(cfg, levels, decimal.NewFromInt(100), cond)

	// avgSpacing = 20/2 = 10, profitPerFill = 10*100/2 = 500
	// fillsPerDay = 0.02*1.5*10 = 0.3, estimated = 500*0.3*365 = 54750
	assert.InDelta(t, 54750, m.EstimatedProfit.InexactFloat64(), 0.01)
	assert.InDelta(t, 0.3, m.ExpectedFillsPerDay, 0.0001)

	// weighted avg level price is 100, break-even adds the 0.1% fee margin
	assert.True(t, m.BreakEvenPrice.Equal(decimal.RequireFromString("100.1")), "got %s", m.BreakEvenPrice)

	// current at 100 in [90, 110]: both boundaries 10 away, drawdown 10%
	assert.InDelta(t, 0.10, m.MaxDrawdown, 0.0001)
}

func TestProfitability_DrawdownUsesWorstBoundary(t *testing.T) {
	cfg := testConfig()
	levels := []domain.GridLevel{levelAt("buy-0", 95, 10)}

	m := Profitability(cfg, levels, decimal.NewFromInt(95), domain.MarketConditions{})

	// max(95-90, 110-95)/95 = 15/95
	assert.InDelta(t, 15.0/95.0, m.MaxDrawdown, 0.0001)
}

func TestProfitability_EmptyLevels(t *testing.T) {
	m := Profitability(testConfig(), nil, decimal.NewFromInt(100), domain.MarketConditions{})
	assert.True(t, m.EstimatedProfit.IsZero())
	assert.Zero(t, m.MaxDrawdown)
}

func TestRisk_TierSelection(t *testing.T) {
	balance := decimal.NewFromInt(1000)

	tests := []struct {
		name       string
		baseAmount int64
		cond       domain.MarketConditions
		wantTier   decimal.Decimal
	}{
		{
			name:       "high score selects conservative tier",
			baseAmount: 1000, // investmentRatio 1.0 -> 50, plus hot volatility
			cond:       domain.MarketConditions{Volatility: 2.0},
			wantTier:   decimal.NewFromInt(100),
		},
		{
			name:       "mid score selects recommended tier",
			baseAmount: 1000, // ratio 1.0 -> score 50
			cond:       domain.MarketConditions{},
			wantTier:   decimal.NewFromInt(250),
		},
		{
			name:       "low score selects maximum tier",
			baseAmount: 100, // ratio 0.1 -> score 5
			cond:       domain.MarketConditions{LiquidityScore: 1},
			wantTier:   decimal.NewFromInt(400),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BaseAmount = decimal.NewFromInt(tt.baseAmount)

			a := Risk(cfg, tt.cond, balance)
			assert.True(t, a.SuggestedAmount.Equal(tt.wantTier),
				"score %.1f selected %s, want %s", a.RiskScore, a.SuggestedAmount, tt.wantTier)
		})
	}
}

func TestRisk_ScoreClamped(t *testing.T) {
	cfg := testConfig()
	cfg.BaseAmount = decimal.NewFromInt(100000)

	a := Risk(cfg, domain.MarketConditions{Volatility: 10}, decimal.NewFromInt(1000))
	assert.Equal(t, 100.0, a.RiskScore)

	cfg.BaseAmount = decimal.NewFromInt(1)
	a = Risk(cfg, domain.MarketConditions{LiquidityScore: 1}, decimal.NewFromInt(1000))
	assert.Equal(t, 0.0, a.RiskScore)
}

func TestValidateGridConfig_Errors(t *testing.T) {
	price := decimal.NewFromInt(100)
	balance := decimal.NewFromInt(1000)

	t.Run("valid configuration", func(t *testing.T) {
		res := ValidateGridConfig(testConfig(), price, balance)
		assert.True(t, res.IsValid)
		assert.Empty(t, res.Errors)
	})

	t.Run("inverted range", func(t *testing.T) {
		cfg := testConfig()
		cfg.PriceRange.Min = decimal.NewFromInt(110)
		cfg.PriceRange.Max = decimal.NewFromInt(90)

		res := ValidateGridConfig(cfg, price, balance)
		assert.False(t, res.IsValid)
		require.NotEmpty(t, res.Errors)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		cfg := testConfig()
		cfg.BaseAmount = decimal.Zero

		res := ValidateGridConfig(cfg, price, balance)
		assert.False(t, res.IsValid)
	})

	t.Run("amount above balance", func(t *testing.T) {
		cfg := testConfig()
		cfg.BaseAmount = decimal.NewFromInt(5000)

		res := ValidateGridConfig(cfg, price, balance)
		assert.False(t, res.IsValid)
	})

	t.Run("order count below two", func(t *testing.T) {
		cfg := testConfig()
		cfg.OrderCount = 1

		res := ValidateGridConfig(cfg, price, balance)
		assert.False(t, res.IsValid)
	})

	t.Run("errors accumulate instead of stopping at the first", func(t *testing.T) {
		cfg := testConfig()
		cfg.OrderCount = 1
		cfg.BaseAmount = decimal.Zero

		res := ValidateGridConfig(cfg, price, balance)
		assert.False(t, res.IsValid)
		assert.GreaterOrEqual(t, len(res.Errors), 2)
	})
}

func TestValidateGridConfig_Warnings(t *testing.T) {
	balance := decimal.NewFromInt(1000)

	t.Run("price outside range", func(t *testing.T) {
		res := ValidateGridConfig(testConfig(), decimal.NewFromInt(200), balance)
		assert.True(t, res.IsValid, "warnings never invalidate the configuration")
		assert.NotEmpty(t, res.Warnings)
		assert.NotEmpty(t, res.Suggestions)
	})

	t.Run("narrow range", func(t *testing.T) {
		cfg := testConfig()
		cfg.PriceRange.Min = decimal.NewFromInt(99)
		cfg.PriceRange.Max = decimal.NewFromInt(101)

		res := ValidateGridConfig(cfg, decimal.NewFromInt(100), balance)
		assert.True(t, res.IsValid)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("wide range", func(t *testing.T) {
		cfg := testConfig()
		cfg.PriceRange.Min = decimal.NewFromInt(10)
		cfg.PriceRange.Max = decimal.NewFromInt(500)

		res := ValidateGridConfig(cfg, decimal.NewFromInt(100), balance)
		assert.True(t, res.IsValid)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("excessive order count", func(t *testing.T) {
		cfg := testConfig()
		cfg.OrderCount = 150

		res := ValidateGridConfig(cfg, decimal.NewFromInt(100), balance)
		assert.True(t, res.IsValid)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("allocation above half the balance", func(t *testing.T) {
		cfg := testConfig()
		cfg.BaseAmount = decimal.NewFromInt(600)

		res := ValidateGridConfig(cfg, decimal.NewFromInt(100), balance)
		assert.True(t, res.IsValid)
		assert.NotEmpty(t, res.Warnings)
	})
}
