// Package risk owns account risk state: position sizing, stop placement,
// liquidation distance, slippage tolerance and the daily drawdown limit.
// Manager is the single writer of the open trade registry; both the trading
// loop and the safety monitor talk to the same instance.
package risk

import (
	"context"
	"sync"
	"time"

	"aitrader/internal/gateway/exchange"
	"aitrader/internal/gateway/notifier"
	"aitrader/internal/logger"
)

// TradeInfo is the record kept for an open position. RiskAmount doubles as
// the margin figure when the safety monitor re-derives liquidation
// distance; EntryPrice, Size and Side exist for the same purpose.
type TradeInfo struct {
	RiskAmount float64
	StopLoss   float64
	TakeProfit float64
	Trailing   bool

	EntryPrice float64
	Size       float64
	Side       string
}

// Options are the risk knobs, typically mapped from config.RiskConfig.
type Options struct {
	RiskPerTrade       float64
	ATRFactor          float64
	RewardRatio        float64
	MaxSlippage        float64
	TrailingStop       bool
	DailyDrawdownLimit float64
	Leverage           int
	MaxOpenTrades      int
}

func (o Options) withDefaults() Options {
	if o.RiskPerTrade <= 0 {
		o.RiskPerTrade = 0.01
	}
	if o.ATRFactor <= 0 {
		o.ATRFactor = 1.5
	}
	if o.RewardRatio <= 0 {
		o.RewardRatio = 2.0
	}
	if o.MaxSlippage <= 0 {
		o.MaxSlippage = 0.001
	}
	if o.DailyDrawdownLimit <= 0 {
		o.DailyDrawdownLimit = 0.05
	}
	if o.Leverage <= 0 {
		o.Leverage = 10
	}
	if o.MaxOpenTrades <= 0 {
		o.MaxOpenTrades = 5
	}
	return o
}

type Manager struct {
	symbol  string
	opts    Options
	gateway exchange.Gateway
	notify  notifier.Notifier

	mu           sync.Mutex
	day          time.Time
	startBalance float64
	dailyPnL     float64
	openTrades   map[string]TradeInfo

	nowFn func() time.Time
}

func NewManager(gateway exchange.Gateway, notify notifier.Notifier, symbol string, opts Options) *Manager {
	if notify == nil {
		notify = notifier.Nop{}
	}
	m := &Manager{
		symbol:     symbol,
		opts:       opts.withDefaults(),
		gateway:    gateway,
		notify:     notify,
		openTrades: make(map[string]TradeInfo),
		nowFn:      time.Now,
	}
	m.day = m.today()
	m.startBalance = m.AvailableBalance(context.Background())
	return m
}

// SetClock overrides the wall clock, used by tests to cross day boundaries.
func (m *Manager) SetClock(fn func() time.Time) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.nowFn = fn
	m.mu.Unlock()
}

func (m *Manager) Options() Options { return m.opts }
func (m *Manager) Symbol() string   { return m.symbol }

func (m *Manager) today() time.Time {
	y, mo, d := m.nowFn().UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// resetDailyLocked rolls daily state forward when the calendar date has
// advanced. It must run as the first action of any operation that reads or
// mutates dailyPnL so a stale day never bleeds into the new one. Within
// one day it is a no-op no matter how often it runs.
func (m *Manager) resetDailyLocked(ctx context.Context) {
	today := m.today()
	if today.Equal(m.day) {
		return
	}
	m.day = today
	m.dailyPnL = 0
	m.startBalance = m.fetchBalance(ctx)
	dailyPnLGauge.Set(0)
	logger.Infof("daily reset, start balance=%.2f", m.startBalance)
}

// AvailableBalance returns the balance usable for new positions. A gateway
// failure degrades to 0 instead of propagating; the gateway itself has
// already escalated the failure.
func (m *Manager) AvailableBalance(ctx context.Context) float64 {
	return m.fetchBalance(ctx)
}

func (m *Manager) fetchBalance(ctx context.Context) float64 {
	if m.gateway == nil {
		return 0
	}
	balance, err := m.gateway.AvailableBalance(ctx, m.symbol)
	if err != nil {
		logger.Warnf("balance fetch failed, treating as zero: %v", err)
		return 0
	}
	logger.Debugf("fetched balance: %.2f", balance)
	return balance
}

// CanOpenNewTrade reports whether the daily drawdown limit still permits a
// new entry. A breach raises a trading_halt warning; it is an advisory gate
// for the caller, not a size clamp.
func (m *Manager) CanOpenNewTrade(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked(ctx)

	allowed := m.startBalance+m.dailyPnL > m.startBalance*(1-m.opts.DailyDrawdownLimit)
	if !allowed {
		logger.Warnf("daily drawdown limit reached (start=%.2f pnl=%.2f)", m.startBalance, m.dailyPnL)
		ddPct := 0.0
		if m.startBalance != 0 {
			ddPct = absFloat(m.dailyPnL) / m.startBalance * 100
		}
		m.notify.Notify("trading_halt",
			"Automatic trading halted: daily drawdown limit reached",
			notifier.LevelWarning,
			map[string]any{"drawdown_pct": ddPct})
	}
	return allowed
}

// PositionSize sizes a trade from the risk fraction and the stop distance.
// stopLoss <= 0 selects the fixed-fraction fallback using leverage. A zero
// stop distance yields size 0 rather than a division error.
func (m *Manager) PositionSize(ctx context.Context, entryPrice, stopLoss float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	balance := m.fetchBalance(ctx)
	var qty float64
	if stopLoss <= 0 {
		tradeAmount := balance * m.opts.RiskPerTrade * float64(m.opts.Leverage)
		qty = tradeAmount / entryPrice
	} else {
		riskAmount := balance * m.opts.RiskPerTrade
		distance := absFloat(entryPrice - stopLoss)
		if distance == 0 {
			return 0
		}
		qty = riskAmount / distance
	}
	logger.Debugf("position size: balance=%.2f entry=%.2f sl=%.2f qty=%.6f", balance, entryPrice, stopLoss, qty)
	if qty < 0 {
		return 0
	}
	return qty
}

// ComputeSLTP derives stop loss and take profit from the ATR.
func (m *Manager) ComputeSLTP(entryPrice float64, side string, atr float64) (sl, tp float64) {
	direction := 1.0
	if side != "buy" {
		direction = -1.0
	}
	sl = entryPrice - direction*m.opts.ATRFactor*atr
	distance := absFloat(entryPrice - sl)
	tp = entryPrice + direction*distance*m.opts.RewardRatio
	return sl, tp
}

// DynamicSLTP is the fixed-percentage fallback used when no ATR is at hand:
// 1% stop, 2% target in the profit direction.
func DynamicSLTP(price float64, side string) (sl, tp float64) {
	if side == "buy" {
		return relativePrice(price, -0.01), relativePrice(price, 0.02)
	}
	return relativePrice(price, 0.01), relativePrice(price, -0.02)
}

// RegisterTrade stores a newly opened trade. Exceeding MaxOpenTrades raises
// an over-exposure advisory but does not block.
func (m *Manager) RegisterTrade(tradeID string, info TradeInfo) {
	m.mu.Lock()
	m.openTrades[tradeID] = info
	count := len(m.openTrades)
	m.mu.Unlock()

	openTradesGauge.Set(float64(count))
	tradesOpenedCounter.Inc()
	if count > m.opts.MaxOpenTrades {
		m.notify.Notify("over_exposure",
			"Too many open trades",
			notifier.LevelWarning,
			map[string]any{"open_trades": count})
	}
}

// UpdateClosedTrade folds a realized result into the daily P&L and drops
// the trade from the registry.
func (m *Manager) UpdateClosedTrade(ctx context.Context, tradeID string, profitLoss float64) {
	m.mu.Lock()
	m.resetDailyLocked(ctx)
	m.dailyPnL += profitLoss
	delete(m.openTrades, tradeID)
	pnl := m.dailyPnL
	count := len(m.openTrades)
	m.mu.Unlock()

	dailyPnLGauge.Set(pnl)
	openTradesGauge.Set(float64(count))
	tradesClosedCounter.Inc()
	logger.Infof("trade %s closed pnl=%.2f daily=%.2f", tradeID, profitLoss, pnl)
	m.notify.Notify("trade_closed",
		"Trade closed",
		notifier.LevelInfo,
		map[string]any{"trade_id": tradeID, "pnl": profitLoss})
}

// ProcessDailyReset forces the lazy day-boundary check, for callers that
// want it to happen on a schedule as well as on access.
func (m *Manager) ProcessDailyReset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked(ctx)
}

// CheckSlippage reports whether the realized fill deviates from the
// expected price by no more than the configured tolerance. A zero expected
// price short-circuits to true since no check is possible.
func (m *Manager) CheckSlippage(expectedPrice, actualPrice float64) bool {
	if expectedPrice == 0 {
		return true
	}
	diff := absFloat(actualPrice-expectedPrice) / expectedPrice
	allowed := decimalLTE(diff, m.opts.MaxSlippage)
	if !allowed {
		logger.Warnf("slippage %.5f exceeds limit %.5f", diff, m.opts.MaxSlippage)
	}
	return allowed
}

// ApplyTrailingStop returns the stop for a trailing-enabled trade. The
// trailing adjustment algorithm is not settled yet, so the stop is returned
// unchanged; callers only depend on the signature.
func (m *Manager) ApplyTrailingStop(tradeID string, price float64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.openTrades[tradeID]
	if !ok || !info.Trailing {
		return 0, false
	}
	return info.StopLoss, true
}

// OpenTrades returns a snapshot of the registry.
func (m *Manager) OpenTrades() map[string]TradeInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]TradeInfo, len(m.openTrades))
	for id, info := range m.openTrades {
		out[id] = info
	}
	return out
}

func (m *Manager) OpenTradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.openTrades)
}

// DailyPnL reports today's realized result after the lazy reset.
func (m *Manager) DailyPnL(ctx context.Context) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked(ctx)
	return m.dailyPnL
}

// Snapshot is a read-only view of daily risk state for reporting surfaces.
// Unlike CanOpenNewTrade it raises no alerts.
type Snapshot struct {
	Day           string  `json:"day"`
	StartBalance  float64 `json:"start_balance"`
	DailyPnL      float64 `json:"daily_pnl"`
	DrawdownLimit float64 `json:"drawdown_limit"`
	OpenTrades    int     `json:"open_trades"`
	Halted        bool    `json:"halted"`
}

func (m *Manager) StateSnapshot(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked(ctx)
	return Snapshot{
		Day:           m.day.Format("2006-01-02"),
		StartBalance:  m.startBalance,
		DailyPnL:      m.dailyPnL,
		DrawdownLimit: m.opts.DailyDrawdownLimit,
		OpenTrades:    len(m.openTrades),
		Halted:        m.startBalance+m.dailyPnL <= m.startBalance*(1-m.opts.DailyDrawdownLimit),
	}
}

func (m *Manager) StartBalance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startBalance
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
