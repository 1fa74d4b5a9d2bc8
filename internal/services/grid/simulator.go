package grid

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

// FillSimulator runs the per-level pending -> filled state machine against a
// stream of price observations. The filled state is terminal: once a level
// fills, no later tick reverts it.
//
// The profit recorded on a fill models profit potential at the trigger moment,
// as if the position were closed at the observed price: (p - level) * amount
// for buys, (level - p) * amount for sells. Portfolio-level accounting that
// treats fills as inventory lives in the session, not here.
type FillSimulator struct {
	config    domain.GridConfiguration
	levels    []domain.GridLevel
	lastPrice decimal.Decimal
	realized  decimal.Decimal
	history   []domain.FillRecord
}

// NewFillSimulator generates the level set from cfg seeded at currentPrice.
func NewFillSimulator(cfg domain.GridConfiguration, currentPrice decimal.Decimal) (*FillSimulator, error) {
	levels, err := GenerateLevels(cfg, currentPrice)
	if err != nil {
		return nil, err
	}
	return &FillSimulator{
		config:    cfg,
		levels:    levels,
		lastPrice: currentPrice,
		realized:  decimal.Zero,
		history:   make([]domain.FillRecord, 0),
	}, nil
}

// Apply processes one price observation and returns the fills it triggered.
// A tick that crosses several levels fills all of them in one batch, ordered
// by ascending distance from the previously observed price, ties broken by
// level ID so the outcome is deterministic. Observations must be fed in
// arrival order; Apply never reorders or batches across calls.
func (s *FillSimulator) Apply(price decimal.Decimal, at time.Time) []domain.FillRecord {
	prev := s.lastPrice
	s.lastPrice = price

	var triggered []int
	for i := range s.levels {
		if s.levels[i].Filled {
			continue
		}
		switch s.levels[i].Side {
		case domain.SideBuy:
			if price.LessThanOrEqual(s.levels[i].Price) {
				triggered = append(triggered, i)
			}
		case domain.SideSell:
			if price.GreaterThanOrEqual(s.levels[i].Price) {
				triggered = append(triggered, i)
			}
		}
	}
	if len(triggered) == 0 {
		return nil
	}

	sort.Slice(triggered, func(a, b int) bool {
		da := s.levels[triggered[a]].Price.Sub(prev).Abs()
		db := s.levels[triggered[b]].Price.Sub(prev).Abs()
		if da.Equal(db) {
			return s.levels[triggered[a]].ID < s.levels[triggered[b]].ID
		}
		return da.LessThan(db)
	})

	fills := make([]domain.FillRecord, 0, len(triggered))
	for _, i := range triggered {
		level := &s.levels[i]

		var profit decimal.Decimal
		if level.Side == domain.SideBuy {
			profit = price.Sub(level.Price).Mul(level.Amount)
		} else {
			profit = level.Price.Sub(price).Mul(level.Amount)
		}

		filledAt := at
		level.Filled = true
		level.FilledAt = &filledAt
		level.Profit = profit
		s.realized = s.realized.Add(profit)

		fill := domain.FillRecord{
			ID:      uuid.New().String(),
			LevelID: level.ID,
			Side:    level.Side,
			Price:   price,
			Amount:  level.Amount,
			Profit:  profit,
			At:      at,
		}
		s.history = append(s.history, fill)
		fills = append(fills, fill)
	}

	return fills
}

// Reset clears every level back to pending by regenerating the set from the
// current configuration and the price at reset time, and clears trade history.
// Two consecutive resets with the same price yield identical state.
func (s *FillSimulator) Reset(price decimal.Decimal) error {
	levels, err := GenerateLevels(s.config, price)
	if err != nil {
		return err
	}
	s.levels = levels
	s.lastPrice = price
	s.realized = decimal.Zero
	s.history = s.history[:0]
	return nil
}

// Reconfigure swaps the configuration and regenerates the level set; the old
// collection is discarded, never mutated.
func (s *FillSimulator) Reconfigure(cfg domain.GridConfiguration, price decimal.Decimal) error {
	levels, err := GenerateLevels(cfg, price)
	if err != nil {
		return err
	}
	s.config = cfg
	s.levels = levels
	s.lastPrice = price
	return nil
}

// Levels returns a copy of the current level set.
func (s *FillSimulator) Levels() []domain.GridLevel {
	out := make([]domain.GridLevel, len(s.levels))
	copy(out, s.levels)
	return out
}

// History returns a copy of the accumulated fill history.
func (s *FillSimulator) History() []domain.FillRecord {
	out := make([]domain.FillRecord, len(s.history))
	copy(out, s.history)
	return out
}

// RealizedProfit is the accumulated sum of per-level trigger profit.
func (s *FillSimulator) RealizedProfit() decimal.Decimal {
	return s.realized
}

// LastPrice returns the most recently observed price.
func (s *FillSimulator) LastPrice() decimal.Decimal {
	return s.lastPrice
}

// Config returns the active configuration.
func (s *FillSimulator) Config() domain.GridConfiguration {
	return s.config
}
