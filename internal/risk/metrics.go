package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openTradesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ai_trader_open_trades",
		Help: "Number of open trades",
	})
	dailyPnLGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ai_trader_daily_pnl",
		Help: "Daily PnL in USDT",
	})
	tradesOpenedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_trader_trades_opened_total",
		Help: "Trades opened",
	})
	tradesClosedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_trader_trades_closed_total",
		Help: "Trades closed",
	})
)
