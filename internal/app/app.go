// Package app wires the components together and runs the two cooperating
// loops (trading cycle and safety monitor) plus the dashboard under one
// errgroup sharing a cancellable context.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"aitrader/internal/agent"
	"aitrader/internal/config"
	"aitrader/internal/decision"
	"aitrader/internal/gateway/binance"
	"aitrader/internal/gateway/exchange"
	"aitrader/internal/gateway/notifier"
	"aitrader/internal/journal"
	"aitrader/internal/logger"
	"aitrader/internal/monitor"
	"aitrader/internal/risk"
	"aitrader/internal/strategy"
	dashhttp "aitrader/internal/transport/http"
)

type App struct {
	cfg     *config.Config
	live    *agent.LiveService
	safety  *monitor.SafetyMonitor
	dash    *dashhttp.Server
	riskMgr *risk.Manager
}

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	notify := buildNotifier(cfg)
	gateway := buildGateway(cfg, notify)

	riskMgr := risk.NewManager(gateway, notify, cfg.Market.Symbol, risk.Options{
		RiskPerTrade:       cfg.Risk.RiskPerTrade,
		ATRFactor:          cfg.Risk.ATRFactor,
		RewardRatio:        cfg.Risk.RewardRatio,
		MaxSlippage:        cfg.Risk.MaxSlippage,
		TrailingStop:       cfg.Risk.TrailingStop,
		DailyDrawdownLimit: cfg.Risk.MaxDrawdown,
		Leverage:           cfg.Risk.Leverage,
		MaxOpenTrades:      cfg.Risk.MaxOpenTrades,
	})

	scorer := strategy.NewScorer(cfg.Strategy.ConfluenceThreshold, cfg.Strategy.SessionMultipliers)
	engine := decision.NewEngine(scorer, riskMgr)
	source := binance.New(binance.Config{})

	store, err := journal.NewStore(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("opening journal failed: %w", err)
	}

	live := agent.NewLiveService(agent.LiveParams{
		Config:  cfg,
		Source:  source,
		Engine:  engine,
		Risk:    riskMgr,
		Gateway: gateway,
		Notify:  notify,
		Journal: store,
	})

	safety := monitor.NewSafetyMonitor(riskMgr, notify, live.LatestPrice,
		time.Duration(cfg.Monitor.IntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.ErrorBackoffSeconds)*time.Second)

	dash, err := dashhttp.NewServer(dashhttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Symbol:  cfg.Market.Symbol,
		Risk:    riskMgr,
		Journal: store,
	})
	if err != nil {
		return nil, fmt.Errorf("building dashboard failed: %w", err)
	}

	return &App{cfg: cfg, live: live, safety: safety, dash: dash, riskMgr: riskMgr}, nil
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled || tg.BotToken == "" || tg.ChatID == "" {
		logger.Infof("telegram disabled, notifications are log-only")
		return notifier.Nop{}
	}
	sink := notifier.NewTelegram(tg.BotToken, tg.ChatID)
	return notifier.NewDispatcher(sink, time.Duration(cfg.Notify.RateLimitSeconds)*time.Second)
}

func buildGateway(cfg *config.Config, notify notifier.Notifier) exchange.Gateway {
	return exchange.NewBitget(exchange.BitgetConfig{
		BaseURL:    cfg.Exchange.RESTBaseURL,
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		Passphrase: cfg.Exchange.Passphrase,
		Timeout:    time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Exchange.MaxRetries,
		Backoff:    time.Duration(cfg.Exchange.BackoffSeconds) * time.Second,
	}, notify)
}

// Run starts all loops and blocks until the context is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.live == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.dash.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("dashboard error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.safety.Run(ctx)
	})
	group.Go(func() error {
		return a.live.Run(ctx)
	})

	return group.Wait()
}

// LiveService exposes the trading loop, mainly for test harnesses.
func (a *App) LiveService() *agent.LiveService {
	if a == nil {
		return nil
	}
	return a.live
}
