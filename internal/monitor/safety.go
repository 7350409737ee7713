// Package monitor runs the continuous safety loop: every interval it walks
// the open trade registry, re-derives each position's liquidation distance
// at the current market price and raises alerts as the distance shrinks.
package monitor

import (
	"context"
	"fmt"
	"time"

	"aitrader/internal/gateway/notifier"
	"aitrader/internal/logger"
	"aitrader/internal/risk"
)

// Alert thresholds on liquidation distance, in percent of current price.
const (
	urgentDistancePct   = 10.0
	warningDistancePct  = 20.0
	defaultInterval     = 30 * time.Second
	defaultErrorBackoff = 60 * time.Second
)

// PriceFunc supplies the current market price for the monitored symbol.
type PriceFunc func(ctx context.Context) (float64, error)

type SafetyMonitor struct {
	risk     *risk.Manager
	notify   notifier.Notifier
	price    PriceFunc
	interval time.Duration
	backoff  time.Duration
}

func NewSafetyMonitor(riskMgr *risk.Manager, notify notifier.Notifier, price PriceFunc, interval, backoff time.Duration) *SafetyMonitor {
	if notify == nil {
		notify = notifier.Nop{}
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if backoff <= 0 {
		backoff = defaultErrorBackoff
	}
	return &SafetyMonitor{
		risk:     riskMgr,
		notify:   notify,
		price:    price,
		interval: interval,
		backoff:  backoff,
	}
}

// Run loops until the context is cancelled. One bad reading must never kill
// monitoring for the remaining trades, so iteration errors only lengthen
// the pause before the next pass.
func (s *SafetyMonitor) Run(ctx context.Context) error {
	logger.Infof("safety monitor started interval=%s", s.interval)
	for {
		wait := s.interval
		if err := s.CheckOnce(ctx); err != nil {
			logger.Errorf("safety check failed: %v", err)
			wait = s.backoff
		}
		select {
		case <-ctx.Done():
			logger.Infof("safety monitor stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// CheckOnce evaluates every open trade against the current price.
func (s *SafetyMonitor) CheckOnce(ctx context.Context) error {
	trades := s.risk.OpenTrades()
	if len(trades) == 0 {
		return nil
	}
	price, err := s.price(ctx)
	if err != nil {
		return fmt.Errorf("price fetch: %w", err)
	}
	if price <= 0 {
		return fmt.Errorf("degenerate price %v", price)
	}
	for id, trade := range trades {
		s.checkTrade(id, trade, price)
	}
	return nil
}

func (s *SafetyMonitor) checkTrade(tradeID string, trade risk.TradeInfo, currentPrice float64) {
	liq := s.risk.CalculateLiquidationPrice(
		trade.EntryPrice, trade.Size, trade.RiskAmount, s.risk.Options().Leverage, trade.Side)
	if liq.LiquidationPrice <= 0 {
		return
	}
	distancePct := absFloat(currentPrice-liq.LiquidationPrice) / currentPrice * 100

	switch {
	case distancePct < urgentDistancePct:
		s.notify.Notify("liquidation_risk",
			"Position is approaching its liquidation price",
			notifier.LevelCritical,
			map[string]any{
				"trade_id":          tradeID,
				"current_price":     currentPrice,
				"liquidation_price": liq.LiquidationPrice,
				"distance_pct":      distancePct,
			})
	case distancePct < warningDistancePct:
		s.notify.Notify("margin_warning",
			"Margin usage is elevated",
			notifier.LevelWarning,
			map[string]any{
				"trade_id":          tradeID,
				"liquidation_price": liq.LiquidationPrice,
				"distance_pct":      distancePct,
			})
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
