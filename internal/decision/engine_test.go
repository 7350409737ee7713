package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aitrader/internal/gateway/exchange"
	"aitrader/internal/gateway/notifier"
	"aitrader/internal/indicator"
	"aitrader/internal/market"
	"aitrader/internal/risk"
	"aitrader/internal/strategy"
)

type fixedBalanceGateway struct {
	balance float64
}

func (g fixedBalanceGateway) AvailableBalance(ctx context.Context, symbol string) (float64, error) {
	return g.balance, nil
}

func (g fixedBalanceGateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Fill, error) {
	return &exchange.Fill{OrderID: "1", FilledPrice: req.Price}, nil
}

func newEngine(balance float64) (*Engine, *strategy.Scorer) {
	scorer := strategy.NewScorer(0.75, nil)
	scorer.SetClock(func() time.Time {
		return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	})
	mgr := risk.NewManager(fixedBalanceGateway{balance: balance}, notifier.Nop{}, "BTCUSDT", risk.Options{})
	return NewEngine(scorer, mgr), scorer
}

func alignedFrames(close float64) []indicator.Frame {
	prev := indicator.Frame{
		Candle: market.Candle{Close: close * 0.99, Volume: 100},
		MACD:   -1, MACDSignal: -0.5,
	}
	latest := indicator.Frame{
		Candle:   market.Candle{Close: close, Volume: 200},
		EMAShort: close * 1.02,
		EMALong:  close * 1.01,
		EMATrend: close,
		RSI:      25,
		MACD:     0.5, MACDSignal: 0.1,
		BBUpper:   close * 1.1,
		BBLower:   close,
		VolumeSMA: 100,
	}
	return []indicator.Frame{prev, latest}
}

func TestEvaluateBuySignal(t *testing.T) {
	engine, _ := newEngine(1000)

	sig := engine.Evaluate(context.Background(), alignedFrames(50000))
	require.NotNil(t, sig)

	assert.Equal(t, "buy", sig.Side)
	assert.InDelta(t, 49500, sig.StopLoss, 1e-6)
	assert.InDelta(t, 51000, sig.TakeProfit, 1e-6)
	// fixed-fraction sizing: 1000 * 0.01 * 10 / 50000
	assert.InDelta(t, 0.002, sig.Size, 1e-9)
	assert.Greater(t, sig.Score, 0.75)
}

func TestEvaluateNoSignal(t *testing.T) {
	engine, _ := newEngine(1000)

	t.Run("too few frames", func(t *testing.T) {
		assert.Nil(t, engine.Evaluate(context.Background(), nil))
	})

	t.Run("neutral frames", func(t *testing.T) {
		frames := alignedFrames(50000)
		latest := &frames[1]
		latest.RSI = 50
		latest.EMAShort = 49000
		latest.EMALong = 50000
		latest.EMATrend = 51000
		latest.MACD = -1
		latest.MACDSignal = -0.5
		latest.Close = 50000
		latest.BBLower = 45000
		latest.Volume = 100
		assert.Nil(t, engine.Evaluate(context.Background(), frames))
	})

	t.Run("non-positive close", func(t *testing.T) {
		frames := alignedFrames(50000)
		frames[1].Close = 0
		// still a directional score, but no usable price
		frames[1].BBLower = -1
		assert.Nil(t, engine.Evaluate(context.Background(), frames))
	})
}

func TestEvaluateZeroBalanceSizesZero(t *testing.T) {
	engine, _ := newEngine(0)

	sig := engine.Evaluate(context.Background(), alignedFrames(50000))
	require.NotNil(t, sig)
	assert.Zero(t, sig.Size, "signal survives, execution layer rejects zero size")
}
