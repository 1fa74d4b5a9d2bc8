package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioState is the aggregated position of one grid session.
// UnrealizedPnL is always derived from the live price and never persisted
// as authoritative; it is recomputed on every price tick.
type PortfolioState struct {
	Cash          decimal.Decimal `json:"cash"`
	Position      decimal.Decimal `json:"position"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// FillRecord is the persisted form of one level fill.
type FillRecord struct {
	ID      string          `json:"id"`
	LevelID string          `json:"level_id"`
	Side    Side            `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Amount  decimal.Decimal `json:"amount"`
	Profit  decimal.Decimal `json:"profit"`
	At      time.Time       `json:"at"`
}

// PortfolioSnapshot is the immutable view published to session listeners
// after every processed price tick.
type PortfolioSnapshot struct {
	Portfolio PortfolioState  `json:"portfolio"`
	Levels    []GridLevel     `json:"levels"`
	Price     decimal.Decimal `json:"price"`
	At        time.Time       `json:"at"`
}
