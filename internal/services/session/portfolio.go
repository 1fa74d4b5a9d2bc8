package session

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

// book tracks inventory with a signed position and a weighted average entry
// price. A fill that extends the position reweights the entry; a fill in the
// opposite direction closes against it and realizes the difference. Shorts
// are first-class: sells that fill before any buy open a negative position.
type book struct {
	cash     decimal.Decimal
	position decimal.Decimal
	avgEntry decimal.Decimal
	realized decimal.Decimal
}

func newBook(cash decimal.Decimal) *book {
	return &book{
		cash:     cash,
		position: decimal.Zero,
		avgEntry: decimal.Zero,
		realized: decimal.Zero,
	}
}

func (b *book) apply(fill domain.FillRecord) {
	signed := fill.Amount
	if fill.Side == domain.SideSell {
		signed = signed.Neg()
		b.cash = b.cash.Add(fill.Price.Mul(fill.Amount))
	} else {
		b.cash = b.cash.Sub(fill.Price.Mul(fill.Amount))
	}

	if b.position.IsZero() || b.position.Sign() == signed.Sign() {
		// extend: reweight the average entry over the whole position
		total := b.position.Add(signed)
		weighted := b.avgEntry.Mul(b.position.Abs()).Add(fill.Price.Mul(fill.Amount))
		b.position = total
		b.avgEntry = weighted.Div(total.Abs())
		return
	}

	// opposite direction: close against the entry, possibly flipping through zero
	closing := decimal.Min(b.position.Abs(), fill.Amount)
	if b.position.Sign() > 0 {
		b.realized = b.realized.Add(fill.Price.Sub(b.avgEntry).Mul(closing))
	} else {
		b.realized = b.realized.Add(b.avgEntry.Sub(fill.Price).Mul(closing))
	}

	b.position = b.position.Add(signed)
	if b.position.IsZero() {
		b.avgEntry = decimal.Zero
	} else if b.position.Sign() == signed.Sign() {
		// flipped through zero: the remainder opens a fresh position at fill price
		b.avgEntry = fill.Price
	}
}

// unrealized marks the open position to price.
func (b *book) unrealized(price decimal.Decimal) decimal.Decimal {
	if b.position.IsZero() {
		return decimal.Zero
	}
	return price.Sub(b.avgEntry).Mul(b.position)
}

func (b *book) state(price decimal.Decimal) domain.PortfolioState {
	return domain.PortfolioState{
		Cash:          b.cash,
		Position:      b.position,
		RealizedPnL:   b.realized,
		UnrealizedPnL: b.unrealized(price),
	}
}
