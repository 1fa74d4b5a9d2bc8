// Package collector aggregates realtime price ticks into fixed-interval
// candles so the analyzer has history to work with without an exchange API.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

const defaultCapacity = 500

// TickAggregator buckets incoming ticks into candles of a fixed interval.
// Each tick counts one unit of volume; with no trade sizes on the wire, tick
// count is the closest available activity proxy.
type TickAggregator struct {
	interval time.Duration
	capacity int

	mu      sync.RWMutex
	candles []domain.Candle
	open    *domain.Candle
}

// NewTickAggregator creates an aggregator with the given candle interval.
func NewTickAggregator(interval time.Duration) *TickAggregator {
	return &TickAggregator{
		interval: interval,
		capacity: defaultCapacity,
	}
}

// Observe folds one price tick into the open candle, sealing it first when
// the tick falls into a later bucket.
func (a *TickAggregator) Observe(price decimal.Decimal, at time.Time) {
	if price.LessThanOrEqual(decimal.Zero) {
		return
	}
	bucket := at.Truncate(a.interval)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open != nil && bucket.After(a.open.OpenTime) {
		a.sealLocked()
	}
	if a.open == nil {
		a.open = &domain.Candle{
			OpenTime: bucket,
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			Volume:   decimal.Zero,
		}
	}

	if price.GreaterThan(a.open.High) {
		a.open.High = price
	}
	if price.LessThan(a.open.Low) {
		a.open.Low = price
	}
	a.open.Close = price
	a.open.Volume = a.open.Volume.Add(decimal.NewFromInt(1))
}

func (a *TickAggregator) sealLocked() {
	a.candles = append(a.candles, *a.open)
	if len(a.candles) > a.capacity {
		a.candles = a.candles[len(a.candles)-a.capacity:]
	}
	a.open = nil
}

// Candles returns up to limit sealed candles, newest last. It satisfies the
// analyzer's candle source.
func (a *TickAggregator) Candles(_ context.Context, limit int) ([]domain.Candle, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.candles) == 0 {
		return nil, errors.New("no candles collected yet")
	}

	candles := a.candles
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	return out, nil
}
