package risk

import "context"

// maintenanceMarginRate is the venue's maintenance margin fraction used in
// the liquidation estimate.
const maintenanceMarginRate = 0.004

// Fraction of total balance allocated per leveraged position, and the hard
// ceiling on the loss a single position may realize at its stop. The cap is
// independent of RiskPerTrade: both controls apply, on purpose.
const (
	capitalFraction = 0.10
	maxLossFraction = 0.02
)

// liquidationSafeDistance is the minimum entry-to-liquidation distance
// (fraction of entry) considered safe.
const liquidationSafeDistance = 0.05

// PositionPlan is the output of the leveraged sizing calculation.
type PositionPlan struct {
	PositionSize     float64
	RequiredMargin   float64
	MaxLoss          float64
	Leverage         int
	CapitalAllocated float64
}

// LiquidationInfo describes how far a position sits from forced closure.
type LiquidationInfo struct {
	LiquidationPrice float64
	DistancePct      float64
	IsSafe           bool
}

// SafetyChecks are the four independent gates a proposed trade must clear.
type SafetyChecks struct {
	LiquidationDistance bool
	StopLossValid       bool
	RiskRatioValid      bool
	MarginSufficient    bool
}

// CalculatePositionSizeWithLeverage allocates 10% of total balance as
// position capital. If the loss at the stop would exceed 2% of total
// balance, the size is rescaled down so the loss lands exactly on the cap.
func (m *Manager) CalculatePositionSizeWithLeverage(entryPrice, stopLossPrice, totalBalance float64, leverage int) PositionPlan {
	if leverage <= 0 {
		leverage = m.opts.Leverage
	}
	plan := PositionPlan{Leverage: leverage}
	if entryPrice <= 0 {
		return plan
	}
	plan.CapitalAllocated = totalBalance * capitalFraction
	plan.RequiredMargin = plan.CapitalAllocated / float64(leverage)
	plan.PositionSize = plan.CapitalAllocated / entryPrice

	stopDistance := absFloat(entryPrice - stopLossPrice)
	plan.MaxLoss = stopDistance * plan.PositionSize
	maxAllowedLoss := totalBalance * maxLossFraction
	if plan.MaxLoss > maxAllowedLoss && stopDistance > 0 {
		plan.PositionSize = maxAllowedLoss / stopDistance
		plan.MaxLoss = maxAllowedLoss
	}
	return plan
}

// CalculateLiquidationPrice estimates the liquidation level for a position.
// A zero position size is degenerate: the entry price is echoed back and
// the position is reported unsafe.
func (m *Manager) CalculateLiquidationPrice(entryPrice, positionSize, margin float64, leverage int, side string) LiquidationInfo {
	if positionSize == 0 || entryPrice == 0 {
		return LiquidationInfo{LiquidationPrice: entryPrice, DistancePct: 0, IsSafe: false}
	}

	marginPerUnit := margin/positionSize - maintenanceMarginRate
	var liquidationPrice float64
	if side == "long" || side == "buy" {
		liquidationPrice = entryPrice * (1 - marginPerUnit)
	} else {
		liquidationPrice = entryPrice * (1 + marginPerUnit)
	}

	distance := absFloat(entryPrice-liquidationPrice) / entryPrice
	return LiquidationInfo{
		LiquidationPrice: liquidationPrice,
		DistancePct:      distance * 100,
		IsSafe:           distance > liquidationSafeDistance,
	}
}

// ValidateTradeSafety runs the four pre-trade gates: safe liquidation
// distance, a 15% buffer between stop and liquidation, reward:risk of at
// least 1.5, and required margin under 80% of available balance. All four
// must pass.
func (m *Manager) ValidateTradeSafety(ctx context.Context, entryPrice, stopLoss, takeProfit float64, plan PositionPlan) (SafetyChecks, bool) {
	var checks SafetyChecks
	if entryPrice <= 0 {
		return checks, false
	}

	liq := m.CalculateLiquidationPrice(entryPrice, plan.PositionSize, plan.RequiredMargin, plan.Leverage, "long")
	checks.LiquidationDistance = liq.IsSafe

	liquidationBuffer := absFloat(stopLoss-liq.LiquidationPrice) / entryPrice
	checks.StopLossValid = liquidationBuffer > 0.15

	riskDistance := absFloat(entryPrice - stopLoss)
	rewardDistance := absFloat(takeProfit - entryPrice)
	if riskDistance > 0 {
		checks.RiskRatioValid = rewardDistance/riskDistance >= 1.5
	}

	balance := m.fetchBalance(ctx)
	checks.MarginSufficient = plan.RequiredMargin < balance*0.8

	allPassed := checks.LiquidationDistance && checks.StopLossValid && checks.RiskRatioValid && checks.MarginSufficient
	return checks, allPassed
}
