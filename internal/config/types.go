package config

// Config is the top level configuration carrier.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Market   MarketConfig   `mapstructure:"market"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Journal  JournalConfig  `mapstructure:"journal"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

type MarketConfig struct {
	Symbol       string `mapstructure:"symbol"`
	Interval     string `mapstructure:"interval"`
	CandleLimit  int    `mapstructure:"candle_limit"`
	CycleSeconds int    `mapstructure:"cycle_seconds"`
}

// RiskConfig carries the knobs consumed by risk.Manager. Missing or
// malformed values fall back to defaults instead of failing startup.
type RiskConfig struct {
	RiskPerTrade  float64 `mapstructure:"risk_per_trade"`
	ATRFactor     float64 `mapstructure:"atr_factor"`
	RewardRatio   float64 `mapstructure:"reward_ratio"`
	MaxSlippage   float64 `mapstructure:"max_slippage"`
	TrailingStop  bool    `mapstructure:"trailing_stop"`
	MaxDrawdown   float64 `mapstructure:"max_drawdown"`
	Leverage      int     `mapstructure:"leverage"`
	MaxOpenTrades int     `mapstructure:"max_open_trades"`
}

type StrategyConfig struct {
	ConfluenceThreshold float64            `mapstructure:"confluence_threshold"`
	SessionMultipliers  map[string]float64 `mapstructure:"session_multipliers"`
}

type ExchangeConfig struct {
	RESTBaseURL    string `mapstructure:"rest_base_url"`
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	Passphrase     string `mapstructure:"passphrase"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffSeconds int    `mapstructure:"backoff_seconds"`
}

type NotifyConfig struct {
	Telegram         TelegramConfig `mapstructure:"telegram"`
	RateLimitSeconds int            `mapstructure:"rate_limit_seconds"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type MonitorConfig struct {
	IntervalSeconds     int `mapstructure:"interval_seconds"`
	ErrorBackoffSeconds int `mapstructure:"error_backoff_seconds"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}
