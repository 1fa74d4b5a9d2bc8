package metrics

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
)

// ValidationResult is the full verdict on a proposed grid configuration.
// Errors make the configuration unusable; warnings and suggestions are
// advisory and never flip IsValid.
type ValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

var (
	narrowRangeThreshold = decimal.NewFromFloat(0.05)
	wideRangeThreshold   = decimal.NewFromInt(1)
	halfBalanceRatio     = decimal.NewFromFloat(0.5)
)

// ValidateGridConfig checks a configuration against the current price and the
// caller's balance. It accumulates every finding instead of stopping at the
// first one, so a UI can show the complete picture in one pass.
func ValidateGridConfig(cfg domain.GridConfiguration, currentPrice, balance decimal.Decimal) ValidationResult {
	res := ValidationResult{
		Errors:      make([]string, 0),
		Warnings:    make([]string, 0),
		Suggestions: make([]string, 0),
	}

	if cfg.PriceRange.Min.GreaterThanOrEqual(cfg.PriceRange.Max) {
		res.Errors = append(res.Errors, fmt.Sprintf("min price %s must be below max price %s", cfg.PriceRange.Min, cfg.PriceRange.Max))
	}
	if cfg.BaseAmount.LessThanOrEqual(decimal.Zero) {
		res.Errors = append(res.Errors, "investment amount must be positive")
	}
	if cfg.BaseAmount.GreaterThan(balance) {
		res.Errors = append(res.Errors, fmt.Sprintf("investment amount %s exceeds available balance %s", cfg.BaseAmount, balance))
	}
	if cfg.OrderCount < 2 {
		res.Errors = append(res.Errors, fmt.Sprintf("order count %d must be at least 2", cfg.OrderCount))
	}

	if currentPrice.LessThan(cfg.PriceRange.Min) || currentPrice.GreaterThan(cfg.PriceRange.Max) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("current price %s is outside the grid range [%s, %s]", currentPrice, cfg.PriceRange.Min, cfg.PriceRange.Max))
		res.Suggestions = append(res.Suggestions, "move the range so it brackets the current price, or wait for the price to return")
	}

	if currentPrice.GreaterThan(decimal.Zero) && cfg.PriceRange.Min.LessThan(cfg.PriceRange.Max) {
		relWidth := cfg.PriceRange.Width().Div(currentPrice)
		if relWidth.LessThan(narrowRangeThreshold) {
			res.Warnings = append(res.Warnings, "range narrower than 5% of the current price; fills may not cover fees")
			res.Suggestions = append(res.Suggestions, "widen the range or reduce the order count")
		}
		if relWidth.GreaterThan(wideRangeThreshold) {
			res.Warnings = append(res.Warnings, "range wider than 100% of the current price; capital will be spread thin")
			res.Suggestions = append(res.Suggestions, "narrow the range around the expected trading band")
		}
	}

	if cfg.OrderCount > 100 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("order count %d is unusually high; per-level amounts may fall below exchange minimums", cfg.OrderCount))
	}

	if balance.GreaterThan(decimal.Zero) && cfg.BaseAmount.GreaterThan(balance.Mul(halfBalanceRatio)) {
		res.Warnings = append(res.Warnings, "allocation exceeds 50% of the balance")
		res.Suggestions = append(res.Suggestions, "keep some balance in reserve for rebalancing")
	}

	res.IsValid = len(res.Errors) == 0
	return res
}
