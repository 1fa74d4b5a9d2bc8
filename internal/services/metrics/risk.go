package metrics

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

// Allocation tiers as fractions of the available balance. The riskier the
// setup scores, the smaller the tier it is steered towards.
var (
	tierConservative = decimal.NewFromFloat(0.10)
	tierRecommended  = decimal.NewFromFloat(0.25)
	tierMaximum      = decimal.NewFromFloat(0.40)
)

// RiskAssessment grades a grid setup on a 0..100 scale and maps the score to
// an allocation suggestion.
type RiskAssessment struct {
	// RiskScore is 0 (benign) to 100 (reckless).
	RiskScore float64 `json:"risk_score"`
	// SuggestedAmount is the allocation tier the score selects, in quote units.
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
	// ConservativeAmount, RecommendedAmount and MaximumAmount expose all three
	// tiers so a caller can present the full ladder.
	ConservativeAmount decimal.Decimal `json:"conservative_amount"`
	RecommendedAmount  decimal.Decimal `json:"recommended_amount"`
	MaximumAmount      decimal.Decimal `json:"maximum_amount"`
}

// Risk scores a configuration against market conditions and the caller's
// balance. The score blends how much of the balance the grid ties up with how
// hostile the market is:
//
//	score = investmentRatio*50 + volatility*20 - liquidityScore*5
//
// clamped to [0, 100]. Scores above 70 select the conservative tier, 40..70
// the recommended one, below 40 the maximum.
func Risk(cfg domain.GridConfiguration, cond domain.MarketConditions, balance decimal.Decimal) RiskAssessment {
	var investmentRatio float64
	if balance.GreaterThan(decimal.Zero) {
		investmentRatio = cfg.BaseAmount.Div(balance).InexactFloat64()
	} else {
		investmentRatio = 1
	}

	score := investmentRatio*50 + cond.Volatility*20 - cond.LiquidityScore*5
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	a := RiskAssessment{
		RiskScore:          score,
		ConservativeAmount: balance.Mul(tierConservative),
		RecommendedAmount:  balance.Mul(tierRecommended),
		MaximumAmount:      balance.Mul(tierMaximum),
	}
	switch {
	case score > 70:
		a.SuggestedAmount = a.ConservativeAmount
	case score >= 40:
		a.SuggestedAmount = a.RecommendedAmount
	default:
		a.SuggestedAmount = a.MaximumAmount
	}
	return a
}
