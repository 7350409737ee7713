// Package decision composes the confluence scorer and the risk manager
// into a single trade signal. The engine is a pure signal generator: the
// drawdown gate (risk.Manager.CanOpenNewTrade) is the caller's job before
// acting on a signal, so scoring stays side-effect free.
package decision

import (
	"context"

	"aitrader/internal/indicator"
	"aitrader/internal/logger"
	"aitrader/internal/risk"
	"aitrader/internal/strategy"
)

// TradeSignal is a sized, bounded order proposal. It is consumed once by
// execution and then discarded.
type TradeSignal struct {
	Side       string
	Size       float64
	StopLoss   float64
	TakeProfit float64
	Score      float64
}

type Engine struct {
	scorer *strategy.Scorer
	risk   *risk.Manager
}

func NewEngine(scorer *strategy.Scorer, riskMgr *risk.Manager) *Engine {
	return &Engine{scorer: scorer, risk: riskMgr}
}

// Evaluate scores the frames and, on a directional signal, attaches stop,
// target and size. Returns nil when there is nothing to do.
func (e *Engine) Evaluate(ctx context.Context, frames []indicator.Frame) *TradeSignal {
	result := e.scorer.Score(frames)
	if result.Action == strategy.ActionNone {
		return nil
	}
	price := frames[len(frames)-1].Close
	if price <= 0 {
		return nil
	}
	side := string(result.Action)
	sl, tp := risk.DynamicSLTP(price, side)
	size := e.risk.PositionSize(ctx, price, 0)
	logger.Debugf("signal %s price=%.2f size=%.6f sl=%.2f tp=%.2f score=%.3f",
		side, price, size, sl, tp, result.RawScore)
	return &TradeSignal{
		Side:       side,
		Size:       size,
		StopLoss:   sl,
		TakeProfit: tp,
		Score:      result.RawScore,
	}
}
