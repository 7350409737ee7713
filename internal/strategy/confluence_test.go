package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aitrader/internal/indicator"
	"aitrader/internal/market"
)

func clockAt(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 5, 4, hour, 30, 0, 0, time.UTC)
	}
}

// bullishFrames aligns every signal long: full EMA stack, oversold RSI,
// MACD crossing up this bar, close hugging the lower band, volume spike.
func bullishFrames() []indicator.Frame {
	prev := indicator.Frame{
		Candle: market.Candle{Close: 99, Volume: 100},
		MACD:   -1, MACDSignal: -0.5,
	}
	latest := indicator.Frame{
		Candle:   market.Candle{Close: 100, Volume: 200},
		EMAShort: 102, EMALong: 101, EMATrend: 100,
		RSI:  25,
		MACD: 0.5, MACDSignal: 0.1,
		BBUpper: 110, BBLower: 100,
		VolumeSMA: 100,
	}
	return []indicator.Frame{prev, latest}
}

func bearishFrames() []indicator.Frame {
	prev := indicator.Frame{
		Candle: market.Candle{Close: 101, Volume: 100},
		MACD:   1, MACDSignal: 0.5,
	}
	latest := indicator.Frame{
		Candle:   market.Candle{Close: 100, Volume: 100},
		EMAShort: 99, EMALong: 100, EMATrend: 101,
		RSI:  75,
		MACD: -0.5, MACDSignal: -0.1,
		BBUpper: 100.5, BBLower: 90,
		VolumeSMA: 100,
	}
	return []indicator.Frame{prev, latest}
}

func TestScoreNeedsTwoFrames(t *testing.T) {
	s := NewScorer(0.75, nil)

	for _, frames := range [][]indicator.Frame{nil, {}, bullishFrames()[:1]} {
		res := s.Score(frames)
		assert.Equal(t, ActionNone, res.Action)
		assert.Zero(t, res.Confidence)
	}
}

func TestScoreFullConfluence(t *testing.T) {
	s := NewScorer(0.75, nil)

	t.Run("buy in the european session", func(t *testing.T) {
		s.SetClock(clockAt(10))
		res := s.Score(bullishFrames())
		// raw sum 1.0 clamped, then x1.2, confidence capped at 1
		assert.Equal(t, ActionBuy, res.Action)
		assert.InDelta(t, 1.2, res.RawScore, 1e-9)
		assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	})

	t.Run("sell mirrors", func(t *testing.T) {
		s.SetClock(clockAt(10))
		res := s.Score(bearishFrames())
		// bearish EMA contributes only the partial weight, so the raw
		// sum is -0.75 and the weighted score -0.9
		assert.Equal(t, ActionSell, res.Action)
		assert.InDelta(t, -0.9, res.RawScore, 1e-9)
		assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	})

	t.Run("asian multiplier keeps full confluence under threshold", func(t *testing.T) {
		s.SetClock(clockAt(3))
		res := s.Score(bullishFrames())
		assert.Equal(t, ActionBuy, res.Action, "1.0 x 0.8 still clears 0.75")
		assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	})
}

func TestScoreClampsBeforeSessionWeight(t *testing.T) {
	s := NewScorer(0.75, nil)
	s.SetClock(clockAt(20)) // american, x1.5

	res := s.Score(bullishFrames())
	// without the clamp the raw sum 1.0 would already be at the cap, so
	// the weighted score is exactly the multiplier
	assert.InDelta(t, 1.5, res.RawScore, 1e-9)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestScorePartialConfluenceBelowThreshold(t *testing.T) {
	s := NewScorer(0.75, nil)
	s.SetClock(clockAt(10))

	frames := bullishFrames()
	latest := &frames[1]
	latest.RSI = 50       // neutral
	latest.EMATrend = 103 // partial EMA only
	latest.Close = 105    // inside the bands
	latest.Volume = 100   // no volume spike
	latest.MACD = -1      // no cross
	latest.MACDSignal = -0.5

	res := s.Score(frames)
	assert.Equal(t, ActionNone, res.Action)
	assert.InDelta(t, 0.15*1.2, res.RawScore, 1e-9)
	assert.InDelta(t, 0.18, res.Confidence, 1e-9)
}

func TestSessionMultiplier(t *testing.T) {
	s := NewScorer(0.75, map[string]float64{"asian": 0.8, "european": 1.2, "american": 1.5})

	cases := []struct {
		hour int
		want float64
	}{
		{0, 0.8}, {7, 0.8},
		{8, 1.2}, {14, 1.2},
		{15, 1.5}, {23, 1.5},
	}
	for _, tc := range cases {
		got := s.sessionMultiplier(time.Date(2026, 5, 4, tc.hour, 0, 0, 0, time.UTC))
		assert.InDelta(t, tc.want, got, 1e-9, "hour %d", tc.hour)
	}

	t.Run("unknown session falls back to 1", func(t *testing.T) {
		bare := &Scorer{Threshold: 0.75, Sessions: map[string]float64{}, nowFn: time.Now}
		assert.InDelta(t, 1.0, bare.sessionMultiplier(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)), 1e-9)
	})
}
