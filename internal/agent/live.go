// Package agent drives the live trading cycle: fetch candles, compute
// indicators, evaluate the decision engine, gate on daily drawdown, place
// the order and register the open trade. The safety monitor runs
// concurrently against the same risk manager.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"aitrader/internal/config"
	"aitrader/internal/decision"
	"aitrader/internal/gateway/exchange"
	"aitrader/internal/gateway/notifier"
	"aitrader/internal/indicator"
	"aitrader/internal/journal"
	"aitrader/internal/logger"
	"aitrader/internal/market"
	"aitrader/internal/risk"
	"aitrader/internal/scheduler"
)

type LiveService struct {
	cfg     *config.Config
	source  market.Source
	engine  *decision.Engine
	risk    *risk.Manager
	gateway exchange.Gateway
	notify  notifier.Notifier
	journal *journal.Store

	indicatorCfg indicator.Settings

	priceMu     sync.RWMutex
	lastPrice   float64
	lastPriceAt time.Time
}

type LiveParams struct {
	Config  *config.Config
	Source  market.Source
	Engine  *decision.Engine
	Risk    *risk.Manager
	Gateway exchange.Gateway
	Notify  notifier.Notifier
	Journal *journal.Store
}

func NewLiveService(p LiveParams) *LiveService {
	notify := p.Notify
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &LiveService{
		cfg:     p.Config,
		source:  p.Source,
		engine:  p.Engine,
		risk:    p.Risk,
		gateway: p.Gateway,
		notify:  notify,
		journal: p.Journal,
	}
}

// Run executes trading cycles on the configured cadence until ctx is
// cancelled. A daily summary fires shortly after the UTC day rollover.
func (s *LiveService) Run(ctx context.Context) error {
	cycle := time.Duration(s.cfg.Market.CycleSeconds) * time.Second

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc("5 0 * * *", func() { s.dailySummary(ctx) }); err != nil {
		return fmt.Errorf("scheduling daily summary failed: %w", err)
	}
	c.Start()
	defer c.Stop()

	sched := scheduler.NewIntervalScheduler(ctx, cycle)
	sched.RunImmediately = true
	sched.Start(func() { s.runCycle(ctx) })
	return ctx.Err()
}

// runCycle performs one decision pass. Any single-cycle failure is logged
// and abandoned; the loop itself stays alive indefinitely.
func (s *LiveService) runCycle(ctx context.Context) {
	candles, err := s.source.FetchCandles(ctx, s.cfg.Market.Symbol, s.cfg.Market.Interval, s.cfg.Market.CandleLimit)
	if err != nil {
		logger.Warnf("candle fetch failed: %v", err)
		s.notify.Notify("data_error", "Candle fetch failed", notifier.LevelWarning,
			map[string]any{"symbol": s.cfg.Market.Symbol, "error": fmt.Sprintf("%v", err)})
		return
	}
	if len(candles) == 0 {
		logger.Warnf("empty candle series for %s", s.cfg.Market.Symbol)
		return
	}
	s.setLastPrice(candles[len(candles)-1].Close)

	frames := indicator.ComputeFrames(candles, s.indicatorCfg)
	signal := s.engine.Evaluate(ctx, frames)
	if signal == nil {
		return
	}
	logger.Infof("signal %s size=%.6f sl=%.2f tp=%.2f score=%.3f",
		signal.Side, signal.Size, signal.StopLoss, signal.TakeProfit, signal.Score)

	if !s.risk.CanOpenNewTrade(ctx) {
		logger.Infof("drawdown gate closed, skipping %s signal", signal.Side)
		return
	}
	if signal.Size <= 0 {
		logger.Warnf("signal sized to zero, nothing to place")
		return
	}
	s.execute(ctx, signal, frames[len(frames)-1].Close)
}

func (s *LiveService) execute(ctx context.Context, signal *decision.TradeSignal, expectedPrice float64) {
	fill, err := s.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     s.cfg.Market.Symbol,
		Size:       signal.Size,
		Side:       signal.Side,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Leverage:   s.risk.Options().Leverage,
		Price:      expectedPrice,
	})
	if err != nil {
		// The gateway has already retried and escalated; this cycle's
		// trade attempt is abandoned.
		logger.Errorf("order placement failed: %v", err)
		return
	}
	if !s.risk.CheckSlippage(expectedPrice, fill.FilledPrice) {
		s.notify.Notify("slippage_exceeded", "Fill deviated beyond slippage tolerance",
			notifier.LevelWarning,
			map[string]any{"expected": expectedPrice, "filled": fill.FilledPrice})
	}

	tradeID := uuid.NewString()
	riskAmount := absFloat(fill.FilledPrice-signal.StopLoss) * signal.Size
	s.risk.RegisterTrade(tradeID, risk.TradeInfo{
		RiskAmount: riskAmount,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Trailing:   s.risk.Options().TrailingStop,
		EntryPrice: fill.FilledPrice,
		Size:       signal.Size,
		Side:       sideDirection(signal.Side),
	})
	s.notify.Notify("trade_opened", "Order executed", notifier.LevelInfo, map[string]any{
		"trade_id": tradeID,
		"side":     signal.Side,
		"size":     signal.Size,
		"price":    fill.FilledPrice,
		"sl":       signal.StopLoss,
		"tp":       signal.TakeProfit,
	})
}

// RecordClosedTrade folds a close event into risk state and the journal.
func (s *LiveService) RecordClosedTrade(ctx context.Context, tradeID string, pnl float64) {
	trades := s.risk.OpenTrades()
	info, known := trades[tradeID]
	s.risk.UpdateClosedTrade(ctx, tradeID, pnl)
	if s.journal == nil || !known {
		return
	}
	rec := journal.ClosedTrade{
		TradeID:    tradeID,
		Symbol:     s.cfg.Market.Symbol,
		Side:       info.Side,
		Size:       info.Size,
		EntryPrice: info.EntryPrice,
		PnL:        pnl,
	}
	if err := s.journal.RecordClosed(ctx, rec); err != nil {
		logger.Errorf("journal write failed for %s: %v", tradeID, err)
	}
}

// LatestPrice serves the safety monitor. The cached close from the last
// cycle is preferred; a stale cache falls back to a one-candle fetch.
func (s *LiveService) LatestPrice(ctx context.Context) (float64, error) {
	s.priceMu.RLock()
	price, at := s.lastPrice, s.lastPriceAt
	s.priceMu.RUnlock()
	maxAge := 2 * time.Duration(s.cfg.Market.CycleSeconds) * time.Second
	if price > 0 && time.Since(at) < maxAge {
		return price, nil
	}
	candles, err := s.source.FetchCandles(ctx, s.cfg.Market.Symbol, s.cfg.Market.Interval, 1)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("no candles for %s", s.cfg.Market.Symbol)
	}
	close := candles[len(candles)-1].Close
	s.setLastPrice(close)
	return close, nil
}

func (s *LiveService) setLastPrice(price float64) {
	if price <= 0 {
		return
	}
	s.priceMu.Lock()
	s.lastPrice = price
	s.lastPriceAt = time.Now()
	s.priceMu.Unlock()
}

func (s *LiveService) dailySummary(ctx context.Context) {
	s.notify.Notify("daily_summary", "Daily account summary", notifier.LevelInfo, map[string]any{
		"balance":     s.risk.AvailableBalance(ctx),
		"daily_pnl":   s.risk.DailyPnL(ctx),
		"open_trades": s.risk.OpenTradeCount(),
	})
}

func sideDirection(side string) string {
	if side == "sell" {
		return "short"
	}
	return "long"
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
