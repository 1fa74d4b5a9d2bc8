// Package session composes the grid engine with the realtime channel: it
// turns inbound price messages into fills, keeps portfolio accounting and
// publishes immutable snapshots to its listeners.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"github.com/vadiminshakov/gridwire/internal/services/grid"
	"go.uber.org/zap"
)

// FillJournal persists fill records. The session logs and continues on
// journal failure; persistence never blocks the price path.
type FillJournal interface {
	SaveFill(fill domain.FillRecord) error
}

// ConditionsProvider supplies fresh market conditions for periodic refresh.
type ConditionsProvider interface {
	Conditions(ctx context.Context) (domain.MarketConditions, error)
}

// SnapshotHandler receives portfolio snapshots after each processed price.
type SnapshotHandler func(snap domain.PortfolioSnapshot)

// GridSession owns one grid's levels and portfolio. All mutation happens
// under one mutex, in the order price messages arrive.
type GridSession struct {
	logger  *zap.Logger
	journal FillJournal

	mu         sync.Mutex
	sim        *grid.FillSimulator
	book       *book
	conditions domain.MarketConditions
	listeners  []SnapshotHandler
}

// NewGridSession creates a session with no grid. CreateGrid arms it.
func NewGridSession(logger *zap.Logger, journal FillJournal) *GridSession {
	return &GridSession{
		logger:  logger,
		journal: journal,
	}
}

// CreateGrid generates the level set and opens the portfolio book with the
// configured base amount as starting cash. Replaces any previous grid.
func (s *GridSession) CreateGrid(cfg domain.GridConfiguration, currentPrice decimal.Decimal) error {
	sim, err := grid.NewFillSimulator(cfg, currentPrice)
	if err != nil {
		return errors.Wrap(err, "create grid")
	}

	s.mu.Lock()
	s.sim = sim
	s.book = newBook(cfg.BaseAmount)
	s.mu.Unlock()

	s.logger.Info("grid created",
		zap.Int("order_count", cfg.OrderCount),
		zap.String("strategy", string(cfg.Strategy)),
		zap.String("price", currentPrice.String()))
	return nil
}

// Reset returns every level to pending and zeroes the portfolio, seeding the
// regenerated grid at the last observed price.
func (s *GridSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return errors.New("no grid to reset")
	}
	if err := s.sim.Reset(s.sim.LastPrice()); err != nil {
		return errors.Wrap(err, "reset grid")
	}
	s.book = newBook(s.sim.Config().BaseAmount)
	return nil
}

// UpdateConfig regenerates the level set under a new configuration. The
// portfolio book, including accumulated realized P&L, carries over; use
// Reset to zero it explicitly.
func (s *GridSession) UpdateConfig(cfg domain.GridConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return errors.New("no grid to reconfigure")
	}
	if err := s.sim.Reconfigure(cfg, s.sim.LastPrice()); err != nil {
		return errors.Wrap(err, "update grid config")
	}
	return nil
}

// OnSnapshot registers a snapshot listener. Register before prices flow.
func (s *GridSession) OnSnapshot(h SnapshotHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, h)
}

// HandleMessage is the channel-facing entry point: it parses a price-bearing
// message and feeds it to the grid. Messages without a usable price are
// logged and dropped.
func (s *GridSession) HandleMessage(msg domain.Message) {
	var payload struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Price.LessThanOrEqual(decimal.Zero) {
		s.logger.Warn("price message dropped",
			zap.String("type", msg.Type), zap.String("topic", msg.Topic), zap.Error(err))
		return
	}

	at := time.Now()
	if msg.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			at = parsed
		}
	}

	s.HandlePrice(payload.Price, at)
}

// HandlePrice processes one price observation: fills triggered levels,
// updates the book, recomputes unrealized P&L and publishes a snapshot.
// Observations are processed strictly in call order.
func (s *GridSession) HandlePrice(price decimal.Decimal, at time.Time) {
	s.mu.Lock()
	if s.sim == nil {
		s.mu.Unlock()
		return
	}

	fills := s.sim.Apply(price, at)
	for _, fill := range fills {
		s.book.apply(fill)
		if s.journal != nil {
			if err := s.journal.SaveFill(fill); err != nil {
				s.logger.Error("fill journal write failed",
					zap.String("fill_id", fill.ID), zap.Error(err))
			}
		}
	}

	snap := domain.PortfolioSnapshot{
		Portfolio: s.book.state(price),
		Levels:    s.sim.Levels(),
		Price:     price,
		At:        at,
	}
	listeners := make([]SnapshotHandler, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if len(fills) > 0 {
		s.logger.Info("fills triggered",
			zap.Int("count", len(fills)),
			zap.String("price", price.String()),
			zap.String("realized_pnl", snap.Portfolio.RealizedPnL.String()))
	}
	for _, h := range listeners {
		h(snap)
	}
}

// Snapshot returns the current portfolio and level set at the last price.
func (s *GridSession) Snapshot() (domain.PortfolioSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return domain.PortfolioSnapshot{}, false
	}
	price := s.sim.LastPrice()
	return domain.PortfolioSnapshot{
		Portfolio: s.book.state(price),
		Levels:    s.sim.Levels(),
		Price:     price,
		At:        time.Now(),
	}, true
}

// Conditions returns the most recently refreshed market conditions.
func (s *GridSession) Conditions() domain.MarketConditions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditions
}

// RefreshConditions polls the provider on the given interval until ctx is
// done. Provider errors are logged; stale conditions stay in place.
func (s *GridSession) RefreshConditions(ctx context.Context, provider ConditionsProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if cond, err := provider.Conditions(ctx); err != nil {
			s.logger.Warn("market conditions refresh failed", zap.Error(err))
		} else {
			s.mu.Lock()
			s.conditions = cond
			s.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
