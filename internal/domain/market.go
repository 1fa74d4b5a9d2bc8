package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the coarse market direction used by the metrics engine.
type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendSideways Trend = "sideways"
)

// MarketConditions is external input to the metrics engine. It is refreshed
// periodically from market data and never produced by the grid engine itself.
type MarketConditions struct {
	// Volatility is a normalized measure (ATR relative to price), >= 0.
	Volatility float64 `json:"volatility"`
	Trend      Trend   `json:"trend"`
	// Volume is relative volume against its recent average, >= 0.
	Volume float64 `json:"volume"`
	// LiquidityScore is in [0, 1], higher means deeper liquidity.
	LiquidityScore float64 `json:"liquidity_score"`
}

// Candle is a single OHLCV bar used to derive market conditions.
type Candle struct {
	OpenTime time.Time       `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}
