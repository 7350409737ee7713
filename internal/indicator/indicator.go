// Package indicator augments candle history with the derived series the
// confluence scorer consumes. Frames are recomputed over the whole trailing
// window on each fetch, not incrementally.
package indicator

import (
	"github.com/markcheno/go-talib"

	"aitrader/internal/market"
)

// Settings holds the lookback periods. Zero values fall back to the
// conventional defaults used throughout.
type Settings struct {
	EMAShort   int // default 12
	EMALong    int // default 26
	EMATrend   int // default 50
	RSIPeriod  int // default 14
	BBPeriod   int // default 20
	ATRPeriod  int // default 14
	MACDFast   int // default 12
	MACDSlow   int // default 26
	MACDSignal int // default 9
	VolumeSMA  int // default 20
}

func (s Settings) withDefaults() Settings {
	if s.EMAShort <= 0 {
		s.EMAShort = 12
	}
	if s.EMALong <= 0 {
		s.EMALong = 26
	}
	if s.EMATrend <= 0 {
		s.EMATrend = 50
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.BBPeriod <= 0 {
		s.BBPeriod = 20
	}
	if s.ATRPeriod <= 0 {
		s.ATRPeriod = 14
	}
	if s.MACDFast <= 0 {
		s.MACDFast = 12
	}
	if s.MACDSlow <= 0 {
		s.MACDSlow = 26
	}
	if s.MACDSignal <= 0 {
		s.MACDSignal = 9
	}
	if s.VolumeSMA <= 0 {
		s.VolumeSMA = 20
	}
	return s
}

// Frame is one candle plus its indicator values.
type Frame struct {
	market.Candle

	EMAShort float64
	EMALong  float64
	EMATrend float64

	RSI float64

	MACD       float64
	MACDSignal float64
	MACDHist   float64

	BBUpper  float64
	BBMiddle float64
	BBLower  float64

	ATR       float64
	VolumeSMA float64
	VWAP      float64
}

// ComputeFrames returns one frame per candle. Leading bars where a lookback
// window is not yet filled carry zero for that indicator; the scorer only
// reads the tail of the sequence so warmup bars are harmless.
func ComputeFrames(candles []market.Candle, cfg Settings) []Frame {
	if len(candles) == 0 {
		return nil
	}
	cfg = cfg.withDefaults()

	n := len(candles)
	closes := market.Closes(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	emaShort := safeSeries(n, func() []float64 { return talib.Ema(closes, cfg.EMAShort) }, cfg.EMAShort)
	emaLong := safeSeries(n, func() []float64 { return talib.Ema(closes, cfg.EMALong) }, cfg.EMALong)
	emaTrend := safeSeries(n, func() []float64 { return talib.Ema(closes, cfg.EMATrend) }, cfg.EMATrend)
	rsi := safeSeries(n, func() []float64 { return talib.Rsi(closes, cfg.RSIPeriod) }, cfg.RSIPeriod+1)

	var macd, macdSignal, macdHist []float64
	if n > cfg.MACDSlow+cfg.MACDSignal {
		macd, macdSignal, macdHist = talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	} else {
		macd = make([]float64, n)
		macdSignal = make([]float64, n)
		macdHist = make([]float64, n)
	}

	var bbUpper, bbMiddle, bbLower []float64
	if n >= cfg.BBPeriod {
		bbUpper, bbMiddle, bbLower = talib.BBands(closes, cfg.BBPeriod, 2, 2, talib.SMA)
	} else {
		bbUpper = make([]float64, n)
		bbMiddle = make([]float64, n)
		bbLower = make([]float64, n)
	}

	atr := safeSeries(n, func() []float64 { return talib.Atr(highs, lows, closes, cfg.ATRPeriod) }, cfg.ATRPeriod+1)
	volSMA := safeSeries(n, func() []float64 { return talib.Sma(volumes, cfg.VolumeSMA) }, cfg.VolumeSMA)

	frames := make([]Frame, n)
	var cumPV, cumV float64
	for i, c := range candles {
		cumPV += c.Close * c.Volume
		cumV += c.Volume
		vwap := 0.0
		if cumV > 0 {
			vwap = cumPV / cumV
		}
		frames[i] = Frame{
			Candle:     c,
			EMAShort:   emaShort[i],
			EMALong:    emaLong[i],
			EMATrend:   emaTrend[i],
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: macdSignal[i],
			MACDHist:   macdHist[i],
			BBUpper:    bbUpper[i],
			BBMiddle:   bbMiddle[i],
			BBLower:    bbLower[i],
			ATR:        atr[i],
			VolumeSMA:  volSMA[i],
			VWAP:       vwap,
		}
	}
	return frames
}

// safeSeries guards talib calls that require a minimum input length and
// returns an all-zero series of matching length otherwise.
func safeSeries(n int, compute func() []float64, minLen int) []float64 {
	if n < minLen {
		return make([]float64, n)
	}
	out := compute()
	if len(out) != n {
		padded := make([]float64, n)
		copy(padded[n-len(out):], out)
		return padded
	}
	return out
}
