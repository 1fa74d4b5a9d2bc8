// Package domain defines core data structures shared by the grid engine and the realtime channel.
package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side of a grid level order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Strategy controls how level prices are spaced across the range.
type Strategy string

const (
	// StrategyArithmetic spaces levels linearly.
	StrategyArithmetic Strategy = "arithmetic"
	// StrategyGeometric spaces levels logarithmically, requires a positive lower bound.
	StrategyGeometric Strategy = "geometric"
	// StrategyAdaptive concentrates levels near the lower bound.
	StrategyAdaptive Strategy = "adaptive"
)

// PriceRange describes the price corridor a grid operates in.
type PriceRange struct {
	Min        decimal.Decimal `json:"min" yaml:"min"`
	Max        decimal.Decimal `json:"max" yaml:"max"`
	Current    decimal.Decimal `json:"current" yaml:"current"`
	Support    decimal.Decimal `json:"support,omitempty" yaml:"support,omitempty"`
	Resistance decimal.Decimal `json:"resistance,omitempty" yaml:"resistance,omitempty"`
}

// Validate enforces the hard invariant min < max. The current price is allowed
// to sit outside the range: that is a breakout, not a validation failure.
func (r PriceRange) Validate() error {
	if r.Min.LessThanOrEqual(decimal.Zero) || r.Max.LessThanOrEqual(decimal.Zero) {
		return errors.Wrap(ErrInvalidRange, "bounds must be positive")
	}
	if r.Min.GreaterThanOrEqual(r.Max) {
		return errors.Wrapf(ErrInvalidRange, "min %s must be below max %s", r.Min, r.Max)
	}
	return nil
}

// Breakout reports whether the given price sits outside [min, max].
func (r PriceRange) Breakout(price decimal.Decimal) bool {
	return price.LessThan(r.Min) || price.GreaterThan(r.Max)
}

// Width returns max - min.
func (r PriceRange) Width() decimal.Decimal {
	return r.Max.Sub(r.Min)
}

// GridLevel is one price point at which a buy or sell order is conceptually placed.
// Filled, FilledAt and Profit are the only mutable fields and are set exactly once
// by the fill simulator; Filled never reverts to false. Side is fixed at creation
// relative to the price the grid was seeded with, not the live price.
type GridLevel struct {
	ID       string          `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Side     Side            `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
	Filled   bool            `json:"filled"`
	FilledAt *time.Time      `json:"filled_at,omitempty"`
	Profit   decimal.Decimal `json:"profit,omitempty"`
}

// String returns a human-readable representation.
func (l *GridLevel) String() string {
	return fmt.Sprintf("%s %s %s @ %s", l.ID, l.Side, l.Amount, l.Price)
}

// GridConfiguration is immutable once a session starts; reconfiguration means
// regenerating the level set, never mutating it in place.
type GridConfiguration struct {
	PriceRange PriceRange      `json:"price_range" yaml:"price_range"`
	OrderCount int             `json:"order_count" yaml:"order_count"`
	Strategy   Strategy        `json:"strategy" yaml:"strategy"`
	BaseAmount decimal.Decimal `json:"base_amount" yaml:"base_amount"`
}

// Validate rejects configurations that can never produce a usable grid.
func (c GridConfiguration) Validate() error {
	if err := c.PriceRange.Validate(); err != nil {
		return err
	}
	if c.OrderCount < 2 {
		return errors.Wrapf(ErrInvalidConfiguration, "order count %d is below minimum of 2", c.OrderCount)
	}
	if c.BaseAmount.LessThanOrEqual(decimal.Zero) {
		return errors.Wrap(ErrInvalidConfiguration, "base amount must be positive")
	}
	switch c.Strategy {
	case StrategyArithmetic, StrategyGeometric, StrategyAdaptive:
	default:
		return errors.Wrapf(ErrInvalidConfiguration, "unknown strategy %q", c.Strategy)
	}
	return nil
}
