// Package setup implements the terminal configuration wizard.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/config"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		symbol        string
		minPriceStr   string
		maxPriceStr   string
		orderCountStr string
		strategy      string
		baseAmountStr string
		balanceStr    string
		channelURL    string
		userID        string
		apiURL        string
		confirm       bool
	)

	// defaults
	symbol = "BTC_USDT"
	orderCountStr = "10"
	baseAmountStr = "1000"
	balanceStr = "1000"
	channelURL = "wss://localhost:9443/realtime"
	apiURL = "https://localhost:9443/api"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("GRIDWIRE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your grid in a few steps.\n"))

	// asset
	fmt.Println(stepStyle.Render("STEP 1: ASSET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&symbol).
				Validate(func(s string) error {
					if !containsUnderscore(s) {
						return fmt.Errorf("pair must contain underscore")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// price range
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDWIRE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: PRICE RANGE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Lower Bound").
				Description("Grid min price (e.g. 50000)").
				Value(&minPriceStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Upper Bound").
				Description("Grid max price, must be above the lower bound").
				Value(&maxPriceStr).
				Validate(validatePositiveDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	// spacing strategy
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDWIRE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: LEVEL SPACING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose level spacing").
				Options(
					huh.NewOption("Arithmetic (even spacing)", string(domain.StrategyArithmetic)),
					huh.NewOption("Geometric (percentage spacing)", string(domain.StrategyGeometric)),
					huh.NewOption("Adaptive (denser near the bottom)", string(domain.StrategyAdaptive)),
				).
				Value(&strategy),
			huh.NewInput().
				Title("Order Count").
				Description("Number of grid levels, at least 2").
				Value(&orderCountStr),
		),
	).Run()
	if err != nil {
		return err
	}

	// capital
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDWIRE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: CAPITAL"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Investment Amount").
				Description("Total amount spread across the grid").
				Value(&baseAmountStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Available Balance").
				Value(&balanceStr).
				Validate(validatePositiveDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	// endpoints
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDWIRE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: ENDPOINTS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Realtime Channel URL").
				Value(&channelURL),
			huh.NewInput().
				Title("User ID").
				Description("Appended to the channel URL as a path segment").
				Value(&userID),
			huh.NewInput().
				Title("Grid API URL").
				Value(&apiURL),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDWIRE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Pair: %s\nRange: [%s, %s]\nSpacing: %s\nLevels: %s\nAmount: %s\nBalance: %s\n",
		symbol, minPriceStr, maxPriceStr, strategy, orderCountStr, baseAmountStr, balanceStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	orderCount := 0
	fmt.Sscanf(orderCountStr, "%d", &orderCount)

	cfgTmp := config.ConfigTmp{
		Symbol:     symbol,
		MinPrice:   minPriceStr,
		MaxPrice:   maxPriceStr,
		OrderCount: orderCount,
		Strategy:   strategy,
		BaseAmount: baseAmountStr,
		Balance:    balanceStr,
	}
	cfgTmp.Channel.BaseURL = channelURL
	cfgTmp.Channel.UserID = userID
	cfgTmp.API.BaseURL = apiURL

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func containsUnderscore(s string) bool {
	for _, r := range s {
		if r == '_' {
			return true
		}
	}
	return false
}
