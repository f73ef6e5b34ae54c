package engine

import (
	"math"

	"github.com/quantra-lab/quantra/internal/types"
)

// Exit condition checks. All functions here are pure: Position owns the
// state, these own the math.

// CheckStopLoss reports whether the stop loss has been hit. Longs trigger at
// or below the stop, shorts at or above.
func CheckStopLoss(closePrice, stopPrice float64, direction types.Direction) bool {
	if direction == types.DirectionLong {
		return closePrice <= stopPrice
	}

	return closePrice >= stopPrice
}

// CheckTakeProfit reports whether the take profit has been hit. Mirror image
// of CheckStopLoss.
func CheckTakeProfit(closePrice, takeProfitPrice float64, direction types.Direction) bool {
	if direction == types.DirectionLong {
		return closePrice >= takeProfitPrice
	}

	return closePrice <= takeProfitPrice
}

// CheckTimeStop reports whether the position has been held for the limit.
func CheckTimeStop(barsHeld, limit int) bool {
	return barsHeld >= limit
}

// UpdateHighestHigh returns the running maximum since entry.
func UpdateHighestHigh(current, high float64) float64 {
	return math.Max(current, high)
}

// UpdateLowestLow returns the running minimum since entry.
func UpdateLowestLow(current, low float64) float64 {
	return math.Min(current, low)
}

// CheckTrailingActivationLong reports whether a long's extremum has reached
// the activation price.
func CheckTrailingActivationLong(highestHigh, activationPrice float64) bool {
	return highestHigh >= activationPrice
}

// CheckTrailingActivationShort reports whether a short's extremum has reached
// the activation price.
func CheckTrailingActivationShort(lowestLow, activationPrice float64) bool {
	return lowestLow <= activationPrice
}

// CalculateTrailingStopLong returns the candidate trailing stop for a long.
// The max with the entry price is the invariant that a trailing stop never
// locks in a loss.
func CalculateTrailingStopLong(highestHigh, atr, distanceATR, entryPrice float64) float64 {
	return math.Max(highestHigh-distanceATR*atr, entryPrice)
}

// CalculateTrailingStopShort returns the candidate trailing stop for a short,
// floored symmetrically at the entry price.
func CalculateTrailingStopShort(lowestLow, atr, distanceATR, entryPrice float64) float64 {
	return math.Min(lowestLow+distanceATR*atr, entryPrice)
}
