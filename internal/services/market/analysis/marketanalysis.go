// Package analysis derives market conditions (volatility, trend, volume,
// liquidity) from candle history.
package analysis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"github.com/vadiminshakov/gridwire/pkg/indicators"
	"go.uber.org/zap"
)

const (
	atrPeriod      = 14
	emaFastPeriod  = 20
	emaSlowPeriod  = 50
	volumeSMAPer   = 20
	trendDeadband  = 0.005
	minCandleCount = emaSlowPeriod + 1
)

// CandleSource supplies recent candle history, newest last.
type CandleSource interface {
	Candles(ctx context.Context, limit int) ([]domain.Candle, error)
}

// MarketAnalyzer converts candle history into MarketConditions.
type MarketAnalyzer struct {
	source CandleSource
	logger *zap.Logger
}

// NewMarketAnalyzer creates a new MarketAnalyzer instance.
func NewMarketAnalyzer(source CandleSource, logger *zap.Logger) *MarketAnalyzer {
	return &MarketAnalyzer{
		source: source,
		logger: logger,
	}
}

// Conditions fetches candle history and analyzes it.
func (m *MarketAnalyzer) Conditions(ctx context.Context) (domain.MarketConditions, error) {
	candles, err := m.source.Candles(ctx, minCandleCount*2)
	if err != nil {
		return domain.MarketConditions{}, errors.Wrap(err, "fetch candles")
	}
	return m.Analyze(candles)
}

// Analyze derives conditions from the given candles, newest last.
// Volatility is ATR relative to the last close, trend compares fast and slow
// EMAs with a small deadband so flat markets classify as sideways, volume is
// the last candle relative to its moving average, and liquidity grows with
// how full and even the recent volume profile is.
func (m *MarketAnalyzer) Analyze(candles []domain.Candle) (domain.MarketConditions, error) {
	if len(candles) < minCandleCount {
		return domain.MarketConditions{}, errors.Errorf(
			"not enough candles: need %d, got %d", minCandleCount, len(candles))
	}

	closes := make([]decimal.Decimal, len(candles))
	priceData := make([]indicators.PriceData, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		priceData[i] = indicators.PriceData{
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		}
	}
	lastClose := closes[len(closes)-1]
	if lastClose.LessThanOrEqual(decimal.Zero) {
		return domain.MarketConditions{}, errors.New("last close must be positive")
	}

	atr, err := indicators.CalculateATR(priceData, atrPeriod)
	if err != nil {
		return domain.MarketConditions{}, errors.Wrap(err, "compute ATR")
	}
	volatility := atr[len(atr)-1].Div(lastClose).InexactFloat64()

	trend, err := m.classifyTrend(closes)
	if err != nil {
		return domain.MarketConditions{}, err
	}

	relVolume := relativeVolume(candles)

	cond := domain.MarketConditions{
		Volatility:     volatility,
		Trend:          trend,
		Volume:         relVolume,
		LiquidityScore: liquidityScore(candles),
	}
	m.logger.Debug("market conditions derived",
		zap.Float64("volatility", cond.Volatility),
		zap.String("trend", string(cond.Trend)),
		zap.Float64("volume", cond.Volume),
		zap.Float64("liquidity", cond.LiquidityScore))
	return cond, nil
}

func (m *MarketAnalyzer) classifyTrend(closes []decimal.Decimal) (domain.Trend, error) {
	fast, err := indicators.CalculateEMA(closes, emaFastPeriod)
	if err != nil {
		return "", errors.Wrap(err, "compute fast EMA")
	}
	slow, err := indicators.CalculateEMA(closes, emaSlowPeriod)
	if err != nil {
		return "", errors.Wrap(err, "compute slow EMA")
	}

	lastFast := fast[len(fast)-1]
	lastSlow := slow[len(slow)-1]
	if lastSlow.LessThanOrEqual(decimal.Zero) {
		return domain.TrendSideways, nil
	}

	ratio := lastFast.Div(lastSlow).InexactFloat64()
	switch {
	case ratio > 1+trendDeadband:
		return domain.TrendBullish, nil
	case ratio < 1-trendDeadband:
		return domain.TrendBearish, nil
	default:
		return domain.TrendSideways, nil
	}
}

// relativeVolume is the last candle's volume over its 20-period average.
func relativeVolume(candles []domain.Candle) float64 {
	period := volumeSMAPer
	if len(candles) < period {
		period = len(candles)
	}

	sum := decimal.Zero
	for i := len(candles) - period; i < len(candles); i++ {
		sum = sum.Add(candles[i].Volume)
	}
	avg := sum.Div(decimal.NewFromInt(int64(period)))
	if avg.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	return candles[len(candles)-1].Volume.Div(avg).InexactFloat64()
}

// liquidityScore grades the recent volume profile on 0..1: high when every
// candle traded and volume is spread evenly, low when activity is thin or
// concentrated in spikes.
func liquidityScore(candles []domain.Candle) float64 {
	period := volumeSMAPer
	if len(candles) < period {
		period = len(candles)
	}
	recent := candles[len(candles)-period:]

	traded := 0
	maxVol := decimal.Zero
	sum := decimal.Zero
	for _, c := range recent {
		if c.Volume.GreaterThan(decimal.Zero) {
			traded++
		}
		if c.Volume.GreaterThan(maxVol) {
			maxVol = c.Volume
		}
		sum = sum.Add(c.Volume)
	}
	if traded == 0 || maxVol.IsZero() {
		return 0
	}

	coverage := float64(traded) / float64(period)
	avg := sum.Div(decimal.NewFromInt(int64(period)))
	evenness := avg.Div(maxVol).InexactFloat64()

	return coverage * evenness
}
