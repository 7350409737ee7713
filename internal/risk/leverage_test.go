package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePositionSizeWithLeverage(t *testing.T) {
	m, _, _ := newTestManager(1000)

	t.Run("standard allocation", func(t *testing.T) {
		plan := m.CalculatePositionSizeWithLeverage(50000, 49000, 1000, 10)
		assert.InDelta(t, 100, plan.CapitalAllocated, 1e-9)
		assert.InDelta(t, 10, plan.RequiredMargin, 1e-9)
		assert.InDelta(t, 0.002, plan.PositionSize, 1e-9)
		assert.InDelta(t, 2.0, plan.MaxLoss, 1e-9)
		assert.Equal(t, 10, plan.Leverage)
	})

	t.Run("loss cap rescales size exactly", func(t *testing.T) {
		// 10% of 1000 buys 1 unit; a 30-point stop loses 30, above the
		// 20 cap, so size shrinks to land the loss on the cap.
		plan := m.CalculatePositionSizeWithLeverage(100, 70, 1000, 10)
		assert.InDelta(t, 20.0, plan.MaxLoss, 1e-9)
		assert.InDelta(t, 20.0/30.0, plan.PositionSize, 1e-9)
	})

	t.Run("cap invariant holds across inputs", func(t *testing.T) {
		for _, tc := range []struct{ entry, stop, balance float64 }{
			{50000, 49000, 1000},
			{100, 50, 2500},
			{3200, 3195, 800},
			{0.5, 0.4, 10000},
		} {
			plan := m.CalculatePositionSizeWithLeverage(tc.entry, tc.stop, tc.balance, 10)
			assert.LessOrEqual(t, plan.MaxLoss, tc.balance*0.02+1e-9,
				"entry=%v stop=%v balance=%v", tc.entry, tc.stop, tc.balance)
		}
	})

	t.Run("non-positive leverage falls back to configured", func(t *testing.T) {
		plan := m.CalculatePositionSizeWithLeverage(50000, 49000, 1000, 0)
		assert.Equal(t, 10, plan.Leverage)
	})

	t.Run("degenerate entry", func(t *testing.T) {
		plan := m.CalculatePositionSizeWithLeverage(0, 49000, 1000, 10)
		assert.Zero(t, plan.PositionSize)
	})
}

func TestCalculateLiquidationPrice(t *testing.T) {
	m, _, _ := newTestManager(1000)

	t.Run("long", func(t *testing.T) {
		liq := m.CalculateLiquidationPrice(100, 10, 1, 10, "long")
		// margin per unit 0.1 minus maintenance 0.004
		assert.InDelta(t, 90.4, liq.LiquidationPrice, 1e-9)
		assert.InDelta(t, 9.6, liq.DistancePct, 1e-9)
		assert.True(t, liq.IsSafe)
	})

	t.Run("short mirrors above entry", func(t *testing.T) {
		liq := m.CalculateLiquidationPrice(100, 10, 1, 10, "short")
		assert.InDelta(t, 109.6, liq.LiquidationPrice, 1e-9)
		assert.True(t, liq.IsSafe)
	})

	t.Run("buy side treated as long", func(t *testing.T) {
		liq := m.CalculateLiquidationPrice(100, 10, 1, 10, "buy")
		assert.InDelta(t, 90.4, liq.LiquidationPrice, 1e-9)
	})

	t.Run("thin margin is unsafe", func(t *testing.T) {
		liq := m.CalculateLiquidationPrice(100, 10, 0.3, 10, "long")
		assert.False(t, liq.IsSafe)
	})

	t.Run("zero size echoes entry and is unsafe", func(t *testing.T) {
		liq := m.CalculateLiquidationPrice(50000, 0, 10, 10, "long")
		assert.InDelta(t, 50000, liq.LiquidationPrice, 1e-9)
		assert.Zero(t, liq.DistancePct)
		assert.False(t, liq.IsSafe)
	})
}

func TestValidateTradeSafety(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(1000)

	plan := PositionPlan{PositionSize: 10, RequiredMargin: 2.5, Leverage: 10}

	t.Run("all gates pass", func(t *testing.T) {
		checks, ok := m.ValidateTradeSafety(ctx, 100, 98, 103, plan)
		require.True(t, ok)
		assert.True(t, checks.LiquidationDistance)
		assert.True(t, checks.StopLossValid)
		assert.True(t, checks.RiskRatioValid)
		assert.True(t, checks.MarginSufficient)
	})

	t.Run("reward ratio below 1.5 fails", func(t *testing.T) {
		checks, ok := m.ValidateTradeSafety(ctx, 100, 98, 102, plan)
		assert.False(t, ok)
		assert.False(t, checks.RiskRatioValid)
	})

	t.Run("stop too close to liquidation fails", func(t *testing.T) {
		// liquidation sits at 75.4; a stop at 80 leaves under 15% of entry
		checks, ok := m.ValidateTradeSafety(ctx, 100, 80, 130, plan)
		assert.False(t, ok)
		assert.False(t, checks.StopLossValid)
	})

	t.Run("margin above 80% of balance fails", func(t *testing.T) {
		fat := PositionPlan{PositionSize: 10, RequiredMargin: 900, Leverage: 10}
		checks, ok := m.ValidateTradeSafety(ctx, 100, 98, 103, fat)
		assert.False(t, ok)
		assert.False(t, checks.MarginSufficient)
	})

	t.Run("degenerate entry price", func(t *testing.T) {
		_, ok := m.ValidateTradeSafety(ctx, 0, 98, 103, plan)
		assert.False(t, ok)
	})
}
