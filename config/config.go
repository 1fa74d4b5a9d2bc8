package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol    string
	Grid      domain.GridConfiguration
	Balance   decimal.Decimal
	WALDir    string
	WebListen string

	Channel ChannelConfig
	API     APIConfig

	ConditionsRefreshInterval time.Duration
}

type ChannelConfig struct {
	BaseURL              string
	UserID               string
	HeartbeatInterval    time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

type APIConfig struct {
	BaseURL string
}

type ConfigTmp struct {
	Symbol     string `yaml:"symbol"`
	MinPrice   string `yaml:"min_price"`
	MaxPrice   string `yaml:"max_price"`
	OrderCount int    `yaml:"order_count"`
	Strategy   string `yaml:"strategy"`
	BaseAmount string `yaml:"base_amount"`
	Balance    string `yaml:"balance"`
	WALDir     string `yaml:"wal_dir,omitempty"`
	WebListen  string `yaml:"web_listen,omitempty"`

	Channel struct {
		BaseURL              string        `yaml:"base_url"`
		UserID               string        `yaml:"user_id"`
		HeartbeatInterval    time.Duration `yaml:"heartbeat_interval,omitempty"`
		ReconnectInterval    time.Duration `yaml:"reconnect_interval,omitempty"`
		MaxReconnectAttempts int           `yaml:"max_reconnect_attempts,omitempty"`
	} `yaml:"channel"`

	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	ConditionsRefreshInterval time.Duration `yaml:"conditions_refresh_interval,omitempty"`
}

func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()
	if *configPath != "" {
		return getYaml(*configPath)
	}

	return getFromCLI()
}

func getFromCLI() (Config, error) {
	symbol := flag.String("symbol", "BTC_USDT", "trade pair, example: BTC_USDT")
	minPrice := flag.String("minprice", "", "lower grid bound")
	maxPrice := flag.String("maxprice", "", "upper grid bound")
	orderCount := flag.Int("ordercount", 10, "number of grid levels")
	strategy := flag.String("strategy", string(domain.StrategyArithmetic), "level spacing: arithmetic, geometric or adaptive")
	baseAmount := flag.String("baseamount", "1000", "total investment amount")
	balance := flag.String("balance", "1000", "available balance")
	channelURL := flag.String("channelurl", "", "realtime channel base URL")
	userID := flag.String("userid", "", "user id appended to the channel URL")
	apiURL := flag.String("apiurl", "", "grid management API base URL")

	flag.Parse()

	tmp := ConfigTmp{
		Symbol:     *symbol,
		MinPrice:   *minPrice,
		MaxPrice:   *maxPrice,
		OrderCount: *orderCount,
		Strategy:   *strategy,
		BaseAmount: *baseAmount,
		Balance:    *balance,
	}
	tmp.Channel.BaseURL = *channelURL
	tmp.Channel.UserID = *userID
	tmp.API.BaseURL = *apiURL

	return buildConfig(tmp)
}

// FromFile loads a yaml config without consulting CLI flags.
func FromFile(path string) (Config, error) {
	return getYaml(path)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	return buildConfig(tmp)
}

func buildConfig(tmp ConfigTmp) (Config, error) {
	minPrice, err := decimal.NewFromString(tmp.MinPrice)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'min_price' param (must be a decimal): %w", err)
	}
	maxPrice, err := decimal.NewFromString(tmp.MaxPrice)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'max_price' param (must be a decimal): %w", err)
	}
	baseAmount, err := decimal.NewFromString(tmp.BaseAmount)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'base_amount' param (must be a decimal): %w", err)
	}
	balance, err := decimal.NewFromString(tmp.Balance)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'balance' param (must be a decimal): %w", err)
	}

	gridCfg := domain.GridConfiguration{
		PriceRange: domain.PriceRange{
			Min: minPrice,
			Max: maxPrice,
		},
		OrderCount: tmp.OrderCount,
		Strategy:   domain.Strategy(tmp.Strategy),
		BaseAmount: baseAmount,
	}
	if err := gridCfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid grid parameters: %w", err)
	}
	if baseAmount.GreaterThan(balance) {
		return Config{}, fmt.Errorf("'base_amount' %s exceeds available 'balance' %s", baseAmount, balance)
	}

	cfg := Config{
		Symbol:  tmp.Symbol,
		Grid:    gridCfg,
		Balance: balance,
		WALDir:  tmp.WALDir,
		Channel: ChannelConfig{
			BaseURL:              tmp.Channel.BaseURL,
			UserID:               tmp.Channel.UserID,
			HeartbeatInterval:    tmp.Channel.HeartbeatInterval,
			ReconnectInterval:    tmp.Channel.ReconnectInterval,
			MaxReconnectAttempts: tmp.Channel.MaxReconnectAttempts,
		},
		API: APIConfig{
			BaseURL: tmp.API.BaseURL,
		},
		WebListen:                 tmp.WebListen,
		ConditionsRefreshInterval: tmp.ConditionsRefreshInterval,
	}

	// env vars override yaml so secrets stay out of config files
	if v := os.Getenv("GRIDWIRE_CHANNEL_URL"); v != "" {
		cfg.Channel.BaseURL = v
	}
	if v := os.Getenv("GRIDWIRE_USER_ID"); v != "" {
		cfg.Channel.UserID = v
	}
	if v := os.Getenv("GRIDWIRE_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}

	if cfg.WebListen == "" {
		cfg.WebListen = ":8088"
	}
	if cfg.ConditionsRefreshInterval <= 0 {
		cfg.ConditionsRefreshInterval = 5 * time.Minute
	}

	return cfg, nil
}
