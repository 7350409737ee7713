package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"aitrader/internal/logger"
)

// Load reads a yaml config file and returns a Config with defaults applied.
// A missing file is not fatal: the documented defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warnf("config file %s not found, using defaults", path)
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:      "dev",
			LogLevel: "info",
			HTTPAddr: ":9985",
		},
		Market: MarketConfig{
			Symbol:       "BTCUSDT",
			Interval:     "1m",
			CandleLimit:  200,
			CycleSeconds: 60,
		},
		Risk: RiskConfig{
			RiskPerTrade:  0.01,
			ATRFactor:     1.5,
			RewardRatio:   2.0,
			MaxSlippage:   0.001,
			TrailingStop:  false,
			MaxDrawdown:   0.05,
			Leverage:      10,
			MaxOpenTrades: 5,
		},
		Strategy: StrategyConfig{
			ConfluenceThreshold: 0.75,
			SessionMultipliers: map[string]float64{
				"asian":    0.8,
				"european": 1.2,
				"american": 1.5,
			},
		},
		Exchange: ExchangeConfig{
			RESTBaseURL:    "https://api.bitget.com",
			TimeoutSeconds: 10,
			MaxRetries:     3,
			BackoffSeconds: 1,
		},
		Notify: NotifyConfig{
			RateLimitSeconds: 60,
		},
		Monitor: MonitorConfig{
			IntervalSeconds:     30,
			ErrorBackoffSeconds: 60,
		},
		Journal: JournalConfig{
			Path: "data/trades.db",
		},
	}
}

// sanitize clamps values a file may have set to something unusable back to
// defaults. Malformed configuration degrades, it never aborts startup.
func (c *Config) sanitize() {
	def := Default()
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1 {
		logger.Warnf("config: invalid risk_per_trade=%v, using %v", c.Risk.RiskPerTrade, def.Risk.RiskPerTrade)
		c.Risk.RiskPerTrade = def.Risk.RiskPerTrade
	}
	if c.Risk.ATRFactor <= 0 {
		c.Risk.ATRFactor = def.Risk.ATRFactor
	}
	if c.Risk.RewardRatio <= 0 {
		c.Risk.RewardRatio = def.Risk.RewardRatio
	}
	if c.Risk.MaxSlippage <= 0 {
		c.Risk.MaxSlippage = def.Risk.MaxSlippage
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		logger.Warnf("config: invalid max_drawdown=%v, using %v", c.Risk.MaxDrawdown, def.Risk.MaxDrawdown)
		c.Risk.MaxDrawdown = def.Risk.MaxDrawdown
	}
	if c.Risk.Leverage <= 0 {
		c.Risk.Leverage = def.Risk.Leverage
	}
	if c.Risk.MaxOpenTrades <= 0 {
		c.Risk.MaxOpenTrades = def.Risk.MaxOpenTrades
	}
	if c.Strategy.ConfluenceThreshold <= 0 {
		c.Strategy.ConfluenceThreshold = def.Strategy.ConfluenceThreshold
	}
	if len(c.Strategy.SessionMultipliers) == 0 {
		c.Strategy.SessionMultipliers = def.Strategy.SessionMultipliers
	}
	if c.Market.Symbol == "" {
		c.Market.Symbol = def.Market.Symbol
	}
	if c.Market.Interval == "" {
		c.Market.Interval = def.Market.Interval
	}
	if c.Market.CandleLimit <= 0 {
		c.Market.CandleLimit = def.Market.CandleLimit
	}
	if c.Market.CycleSeconds <= 0 {
		c.Market.CycleSeconds = def.Market.CycleSeconds
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = def.Exchange.TimeoutSeconds
	}
	if c.Exchange.MaxRetries <= 0 {
		c.Exchange.MaxRetries = def.Exchange.MaxRetries
	}
	if c.Exchange.BackoffSeconds <= 0 {
		c.Exchange.BackoffSeconds = def.Exchange.BackoffSeconds
	}
	if c.Notify.RateLimitSeconds <= 0 {
		c.Notify.RateLimitSeconds = def.Notify.RateLimitSeconds
	}
	if c.Monitor.IntervalSeconds <= 0 {
		c.Monitor.IntervalSeconds = def.Monitor.IntervalSeconds
	}
	if c.Monitor.ErrorBackoffSeconds <= 0 {
		c.Monitor.ErrorBackoffSeconds = def.Monitor.ErrorBackoffSeconds
	}
}
