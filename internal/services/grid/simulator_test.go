package grid

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

func newTestSimulator(t *testing.T, cfg domain.GridConfiguration, seed string) *FillSimulator {
	t.Helper()
	sim, err := NewFillSimulator(cfg, decimal.RequireFromString(seed))
	require.NoError(t, err)
	return sim
}

func TestFillSimulator_BuyTriggerProfit(t *testing.T) {
	// one buy at 0.95 with amount 10, one sell at 1.05
	cfg := testConfig("0.95", "1.05", 2)
	cfg.BaseAmount = decimal.NewFromInt(10)
	sim := newTestSimulator(t, cfg, "1.0")

	now := time.Now()
	fills := sim.Apply(decimal.RequireFromString("1.0"), now)
	assert.Empty(t, fills)

	fills = sim.Apply(decimal.RequireFromString("0.94"), now)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.SideBuy, fills[0].Side)
	assert.True(t, fills[0].Profit.Equal(decimal.RequireFromString("-0.1")),
		"buy at 0.94 against level 0.95 with amount 10 yields profit -0.1, got %s", fills[0].Profit)

	// the level is terminal: crossing it again triggers nothing
	fills = sim.Apply(decimal.RequireFromString("0.96"), now)
	assert.Empty(t, fills)
	fills = sim.Apply(decimal.RequireFromString("0.93"), now)
	assert.Empty(t, fills)
}

func TestFillSimulator_SellTriggerProfit(t *testing.T) {
	cfg := testConfig("0.95", "1.05", 2)
	cfg.BaseAmount = decimal.NewFromInt(10)
	sim := newTestSimulator(t, cfg, "1.0")

	fills := sim.Apply(decimal.RequireFromString("1.06"), time.Now())
	require.Len(t, fills, 1)
	assert.Equal(t, domain.SideSell, fills[0].Side)
	// (1.05 - 1.06) * 10 = -0.1
	assert.True(t, fills[0].Profit.Equal(decimal.RequireFromString("-0.1")))
}

func TestFillSimulator_FilledStateIsTerminal(t *testing.T) {
	cfg := testConfig("0.85", "1.15", 8)
	sim := newTestSimulator(t, cfg, "1.0")

	now := time.Now()
	sim.Apply(decimal.RequireFromString("0.85"), now)

	filledBefore := 0
	for _, l := range sim.Levels() {
		if l.Filled {
			filledBefore++
			require.NotNil(t, l.FilledAt)
		}
	}
	require.Equal(t, 4, filledBefore, "all buy levels fill on a drop to the lower bound")

	// oscillate back and forth: no level reverts to pending
	sim.Apply(decimal.RequireFromString("1.0"), now)
	sim.Apply(decimal.RequireFromString("0.85"), now)

	filledAfter := 0
	for _, l := range sim.Levels() {
		if l.Filled {
			filledAfter++
		}
	}
	assert.Equal(t, filledBefore, filledAfter)
}

func TestFillSimulator_BatchOrderedByDistanceFromPreviousPrice(t *testing.T) {
	cfg := testConfig("0.85", "1.15", 8)
	sim := newTestSimulator(t, cfg, "1.0")

	// one tick sweeps through every buy level
	fills := sim.Apply(decimal.RequireFromString("0.80"), time.Now())
	require.Len(t, fills, 4)

	// closest to the previous price (1.0) first, so level prices descend
	for i := 1; i < len(fills); i++ {
		assert.True(t, levelPrice(t, sim, fills[i-1].LevelID).GreaterThanOrEqual(levelPrice(t, sim, fills[i].LevelID)),
			"fills must be ordered by ascending distance from the previous price")
	}
}

func levelPrice(t *testing.T, sim *FillSimulator, levelID string) decimal.Decimal {
	t.Helper()
	for _, l := range sim.Levels() {
		if l.ID == levelID {
			return l.Price
		}
	}
	t.Fatalf("level %s not found", levelID)
	return decimal.Zero
}

func TestFillSimulator_RealizedProfitAccumulates(t *testing.T) {
	cfg := testConfig("0.95", "1.05", 2)
	cfg.BaseAmount = decimal.NewFromInt(10)
	sim := newTestSimulator(t, cfg, "1.0")

	now := time.Now()
	sim.Apply(decimal.RequireFromString("0.94"), now)
	sim.Apply(decimal.RequireFromString("1.06"), now)

	// two fills of -0.1 each
	assert.True(t, sim.RealizedProfit().Equal(decimal.RequireFromString("-0.2")),
		"got %s", sim.RealizedProfit())
	assert.Len(t, sim.History(), 2)
}

func TestFillSimulator_ResetIsIdempotent(t *testing.T) {
	cfg := testConfig("0.85", "1.15", 8)
	sim := newTestSimulator(t, cfg, "1.0")

	now := time.Now()
	sim.Apply(decimal.RequireFromString("0.85"), now)
	require.NotEmpty(t, sim.History())

	price := decimal.RequireFromString("1.0")
	require.NoError(t, sim.Reset(price))
	first := sim.Levels()
	require.NoError(t, sim.Reset(price))
	second := sim.Levels()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.True(t, first[i].Price.Equal(second[i].Price))
		assert.False(t, second[i].Filled)
	}
	assert.Empty(t, sim.History())
	assert.True(t, sim.RealizedProfit().IsZero())
}

func TestFillSimulator_ReconfigureRegeneratesLevels(t *testing.T) {
	cfg := testConfig("0.85", "1.15", 8)
	sim := newTestSimulator(t, cfg, "1.0")
	sim.Apply(decimal.RequireFromString("0.85"), time.Now())

	next := testConfig("0.90", "1.10", 4)
	require.NoError(t, sim.Reconfigure(next, decimal.RequireFromString("1.0")))

	levels := sim.Levels()
	require.Len(t, levels, 4)
	for _, l := range levels {
		assert.False(t, l.Filled, "reconfiguration yields a fresh pending level set")
	}
	// trade history survives reconfiguration
	assert.NotEmpty(t, sim.History())
}
