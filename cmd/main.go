// Command gridwire runs a grid trading session against a realtime price
// channel: it generates the level ladder, simulates fills on live ticks,
// journals them to a WAL and serves a dashboard with SSE streams.
//
// Usage:
//
//	gridwire --config config.yaml
//	gridwire setup        (interactive wizard, writes config.gen.yaml)
//	gridwire (uses CLI arguments)
//
// Optional environment variables (.env is loaded when present):
//
//	GRIDWIRE_CHANNEL_URL, GRIDWIRE_USER_ID, GRIDWIRE_API_URL
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridwire/config"
	"github.com/vadiminshakov/gridwire/internal/clients"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"github.com/vadiminshakov/gridwire/internal/services/channel"
	"github.com/vadiminshakov/gridwire/internal/services/market/analysis"
	"github.com/vadiminshakov/gridwire/internal/services/market/collector"
	"github.com/vadiminshakov/gridwire/internal/services/metrics"
	"github.com/vadiminshakov/gridwire/internal/services/session"
	"github.com/vadiminshakov/gridwire/internal/setup"
	"github.com/vadiminshakov/gridwire/internal/storage/fills"
	"github.com/vadiminshakov/gridwire/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const candleInterval = time.Minute

func main() {
	_ = godotenv.Load()

	var (
		cfg config.Config
		err error
	)
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.FromFile("config.gen.yaml")
	} else {
		cfg, err = config.Get()
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	fillStore, err := fills.NewWALStore(cfg.WALDir)
	if err != nil {
		logger.Fatal("failed to open fill journal", zap.Error(err))
	}
	defer fillStore.Close()

	sess := session.NewGridSession(logger, fillStore)
	aggregator := collector.NewTickAggregator(candleInterval)
	analyzer := analysis.NewMarketAnalyzer(aggregator, logger)
	webServer := web.NewServer(cfg.WebListen, fillStore)

	sess.OnSnapshot(webServer.PublishSnapshot)
	sess.OnSnapshot(func(snap domain.PortfolioSnapshot) {
		aggregator.Observe(snap.Price, snap.At)
	})

	ch := channel.New(channel.Config{
		BaseURL:              cfg.Channel.BaseURL,
		UserID:               cfg.Channel.UserID,
		HeartbeatInterval:    cfg.Channel.HeartbeatInterval,
		ReconnectInterval:    cfg.Channel.ReconnectInterval,
		MaxReconnectAttempts: cfg.Channel.MaxReconnectAttempts,
	}, channel.WebsocketDialer{}, logger)

	ch.OnStateChange(func(state domain.ConnectionState) {
		logger.Info("channel state changed", zap.String("state", string(state)))
	})
	ch.OnSubscriptionResult(func(topic string, err error) {
		if err != nil {
			logger.Error("subscription rejected", zap.String("topic", topic), zap.Error(err))
			return
		}
		logger.Info("subscription confirmed", zap.String("topic", topic))
	})

	// the grid is seeded lazily: the first observed price anchors the ladder
	var seedOnce sync.Once
	topic := "prices:" + cfg.Symbol
	ch.OnTopic(topic, func(msg domain.Message) {
		var payload struct {
			Price decimal.Decimal `json:"price"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Price.LessThanOrEqual(decimal.Zero) {
			return
		}
		seedOnce.Do(func() {
			startGrid(sess, cfg, payload.Price, logger)
		})
		sess.HandleMessage(msg)
	})

	if err := ch.Subscribe(topic); err != nil {
		logger.Fatal("failed to retain subscription", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ch.Connect(ctx); err != nil {
		// reconnects keep running in the background; a failed first dial is not fatal
		logger.Warn("initial connect failed", zap.Error(err))
	}
	defer ch.Disconnect()

	registerWithAPI(ctx, cfg, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webServer.Start(ctx)
	})
	g.Go(func() error {
		sess.RefreshConditions(ctx, analyzer, cfg.ConditionsRefreshInterval)
		return nil
	})

	logger.Info("started",
		zap.String("symbol", cfg.Symbol),
		zap.String("web", cfg.WebListen))

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}

// startGrid validates the configuration against the live price, logs advisory
// findings and risk, and arms the session. A rejected configuration exits the
// process instead of leaving it running with no grid armed.
func startGrid(sess *session.GridSession, cfg config.Config, price decimal.Decimal, logger *zap.Logger) {
	verdict := metrics.ValidateGridConfig(cfg.Grid, price, cfg.Balance)
	for _, w := range verdict.Warnings {
		logger.Warn("grid configuration warning", zap.String("warning", w))
	}
	if !verdict.IsValid {
		for _, e := range verdict.Errors {
			logger.Error("grid configuration rejected", zap.String("error", e))
		}
		logger.Fatal("grid cannot start, fix the configuration and restart")
	}

	if err := sess.CreateGrid(cfg.Grid, price); err != nil {
		logger.Fatal("failed to create grid", zap.Error(err))
	}

	risk := metrics.Risk(cfg.Grid, sess.Conditions(), cfg.Balance)
	logger.Info("grid armed",
		zap.String("seed_price", price.String()),
		zap.Float64("risk_score", risk.RiskScore),
		zap.String("suggested_amount", risk.SuggestedAmount.String()))
}

// registerWithAPI announces the grid to the management API when one is
// configured. Registration failure is logged, not fatal: the local session
// works without it.
func registerWithAPI(ctx context.Context, cfg config.Config, logger *zap.Logger) {
	if cfg.API.BaseURL == "" {
		return
	}
	api := clients.NewGridAPIClient(cfg.API.BaseURL)
	summary, err := api.CreateGrid(ctx, cfg.Grid)
	if err != nil {
		logger.Warn("grid registration failed", zap.Error(err))
		return
	}
	logger.Info("grid registered", zap.String("grid_id", summary.ID))
}
