// Package strategy turns indicator frames into a directional confluence
// score. Scoring is a pure function of the frames and the wall clock hour
// (session weighting); the clock is injectable for tests.
package strategy

import (
	"time"

	"aitrader/internal/indicator"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionNone Action = "none"
)

// Result is the per-evaluation output of the scorer.
type Result struct {
	Action     Action
	Confidence float64 // in [0, 1]
	RawScore   float64 // session-weighted, unclamped
}

// Signal weights. Contributions are additive and independent; the sum is
// clamped to [-1, 1] before the session multiplier is applied.
const (
	weightEMAFull    = 0.3
	weightEMAPartial = 0.15
	weightRSI        = 0.25
	weightMACDCross  = 0.2
	weightBollinger  = 0.15
	weightVolume     = 0.1
)

type Scorer struct {
	Threshold float64
	Sessions  map[string]float64

	nowFn func() time.Time
}

func NewScorer(threshold float64, sessions map[string]float64) *Scorer {
	if threshold <= 0 {
		threshold = 0.75
	}
	if len(sessions) == 0 {
		sessions = map[string]float64{
			"asian":    0.8,
			"european": 1.2,
			"american": 1.5,
		}
	}
	return &Scorer{
		Threshold: threshold,
		Sessions:  sessions,
		nowFn:     time.Now,
	}
}

// SetClock overrides the wall clock used for session weighting.
func (s *Scorer) SetClock(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// Score evaluates the most recent two frames. Fewer than two frames is not
// an error, it simply yields no signal.
func (s *Scorer) Score(frames []indicator.Frame) Result {
	if len(frames) < 2 {
		return Result{Action: ActionNone, Confidence: 0}
	}
	latest := frames[len(frames)-1]
	prev := frames[len(frames)-2]

	sum := 0.0

	// EMA ordering
	switch {
	case latest.EMAShort > latest.EMALong && latest.EMALong > latest.EMATrend:
		sum += weightEMAFull
	case latest.EMAShort > latest.EMALong:
		sum += weightEMAPartial
	case latest.EMAShort < latest.EMALong:
		sum -= weightEMAPartial
	}

	// RSI extremes
	switch {
	case latest.RSI < 30:
		sum += weightRSI
	case latest.RSI > 70:
		sum -= weightRSI
	}

	// MACD cross this bar
	switch {
	case latest.MACD > latest.MACDSignal && prev.MACD <= prev.MACDSignal:
		sum += weightMACDCross
	case latest.MACD < latest.MACDSignal && prev.MACD >= prev.MACDSignal:
		sum -= weightMACDCross
	}

	// Bollinger extremes
	switch {
	case latest.Close < latest.BBLower*1.01:
		sum += weightBollinger
	case latest.Close > latest.BBUpper*0.99:
		sum -= weightBollinger
	}

	// Volume confirmation, boost only
	if latest.Volume > latest.VolumeSMA*1.2 {
		sum += weightVolume
	}

	sum = clamp(sum, -1, 1)
	final := sum * s.sessionMultiplier(s.nowFn().UTC())

	confidence := clamp(abs(final), 0, 1)
	switch {
	case final > s.Threshold:
		return Result{Action: ActionBuy, Confidence: confidence, RawScore: final}
	case final < -s.Threshold:
		return Result{Action: ActionSell, Confidence: confidence, RawScore: final}
	default:
		return Result{Action: ActionNone, Confidence: confidence, RawScore: final}
	}
}

// sessionMultiplier maps the UTC hour to the active trading session weight.
func (s *Scorer) sessionMultiplier(now time.Time) float64 {
	hour := now.Hour()
	var key string
	switch {
	case hour < 8:
		key = "asian"
	case hour < 15:
		key = "european"
	default:
		key = "american"
	}
	if mult, ok := s.Sessions[key]; ok && mult > 0 {
		return mult
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
