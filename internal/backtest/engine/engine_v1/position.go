package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/quantra-lab/quantra/pkg/errors"
)

// Position is the exit state machine for one open trade. It is created open,
// mutated once per bar by UpdateBar, and terminal once an exit fires. Exactly
// one manager writes to a Position; no concurrent mutation is permitted.
type Position struct {
	PositionID string
	Symbol     string
	Direction  types.Direction

	// Entry facts, immutable after open.
	EntryPrice    float64
	EntryBarIndex int
	EntryTime     time.Time
	SizeUSD       float64
	SizeUnits     float64
	EntryFeesUSD  float64
	ATRAtEntry    float64
	Spec          types.ExitSpec

	// Mutable per-bar state.
	trailingActivated bool
	trailingStopPrice optional.Option[float64]
	highestHigh       float64
	lowestLow         float64
	barsHeld          int
	isOpen            bool
}

// NewPosition creates an open position from an already-simulated entry fill.
func NewPosition(positionID string, request types.OpenPositionRequest, entryPrice, sizeUnits, entryFees float64) (*Position, error) {
	if positionID == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "position id is required")
	}

	if entryPrice <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPrice, "entry price must be positive, got %f", entryPrice)
	}

	if sizeUnits <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidSize, "size units must be positive, got %f", sizeUnits)
	}

	if err := request.Validate(); err != nil {
		return nil, err
	}

	return &Position{
		PositionID:        positionID,
		Symbol:            request.Symbol,
		Direction:         request.Direction,
		EntryPrice:        entryPrice,
		EntryBarIndex:     request.BarIndex,
		EntryTime:         request.Time,
		SizeUSD:           request.SizeUSD,
		SizeUnits:         sizeUnits,
		EntryFeesUSD:      entryFees,
		ATRAtEntry:        request.ATRAtEntry,
		Spec:              request.Spec,
		trailingActivated: false,
		trailingStopPrice: optional.None[float64](),
		highestHigh:       entryPrice,
		lowestLow:         entryPrice,
		barsHeld:          0,
		isOpen:            true,
	}, nil
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.isOpen
}

// BarsHeld returns the number of bars applied since entry.
func (p *Position) BarsHeld() int {
	return p.barsHeld
}

// TrailingActivated reports whether the trailing stop is live.
func (p *Position) TrailingActivated() bool {
	return p.trailingActivated
}

// TrailingStopPrice returns the current trailing level, None when trailing is
// disabled or not yet activated.
func (p *Position) TrailingStopPrice() optional.Option[float64] {
	return p.trailingStopPrice
}

// HighestHigh returns the highest high seen since entry.
func (p *Position) HighestHigh() float64 {
	return p.highestHigh
}

// LowestLow returns the lowest low seen since entry.
func (p *Position) LowestLow() float64 {
	return p.lowestLow
}

// UpdateBar advances the position by one bar and returns the exit result if
// an exit fired, None otherwise. Exits are evaluated against the bar close in
// strict priority order: stop loss, trailing stop (only once activated), take
// profit, time stop. Stop loss outranks the trailing stop even when both
// would fire on the same bar.
func (p *Position) UpdateBar(high, low, closePrice float64, barIndex int, timestamp time.Time) optional.Option[types.ExitResult] {
	if !p.isOpen {
		return optional.None[types.ExitResult]()
	}

	p.barsHeld++

	if p.Direction == types.DirectionLong {
		p.highestHigh = UpdateHighestHigh(p.highestHigh, high)
	} else {
		p.lowestLow = UpdateLowestLow(p.lowestLow, low)
	}

	p.advanceTrailing()

	if CheckStopLoss(closePrice, p.Spec.StopLossPrice, p.Direction) {
		return optional.Some(p.close(types.ExitReasonStopLoss, closePrice, barIndex, timestamp))
	}

	if p.trailingActivated {
		trailingStop := p.trailingStopPrice.Unwrap()
		if CheckStopLoss(closePrice, trailingStop, p.Direction) {
			return optional.Some(p.close(types.ExitReasonTrailingStop, closePrice, barIndex, timestamp))
		}
	}

	if CheckTakeProfit(closePrice, p.Spec.TakeProfitPrice, p.Direction) {
		return optional.Some(p.close(types.ExitReasonTakeProfit, closePrice, barIndex, timestamp))
	}

	if CheckTimeStop(p.barsHeld, p.Spec.TimeStopBars) {
		return optional.Some(p.close(types.ExitReasonTimeStop, closePrice, barIndex, timestamp))
	}

	return optional.None[types.ExitResult]()
}

// advanceTrailing activates the trailing stop once the extremum reaches the
// activation price, then ratchets the level: monotone non-decreasing for
// longs, non-increasing for shorts, regardless of pullbacks.
func (p *Position) advanceTrailing() {
	if p.Spec.Trailing.IsNone() {
		return
	}

	trailing := p.Spec.Trailing.Unwrap()

	if !p.trailingActivated {
		if p.Direction == types.DirectionLong {
			p.trailingActivated = CheckTrailingActivationLong(p.highestHigh, trailing.ActivationPrice)
		} else {
			p.trailingActivated = CheckTrailingActivationShort(p.lowestLow, trailing.ActivationPrice)
		}
	}

	if !p.trailingActivated {
		return
	}

	var candidate float64
	if p.Direction == types.DirectionLong {
		candidate = CalculateTrailingStopLong(p.highestHigh, p.ATRAtEntry, trailing.DistanceATR, p.EntryPrice)
		if p.trailingStopPrice.IsSome() {
			candidate = UpdateHighestHigh(p.trailingStopPrice.Unwrap(), candidate)
		}
	} else {
		candidate = CalculateTrailingStopShort(p.lowestLow, p.ATRAtEntry, trailing.DistanceATR, p.EntryPrice)
		if p.trailingStopPrice.IsSome() {
			candidate = UpdateLowestLow(p.trailingStopPrice.Unwrap(), candidate)
		}
	}

	p.trailingStopPrice = optional.Some(candidate)
}

// ForceClose bypasses exit evaluation and closes at the given close with the
// supplied reason, used for run-end liquidation and manual closes.
func (p *Position) ForceClose(closePrice float64, barIndex int, timestamp time.Time, reason types.ExitReason) types.ExitResult {
	return p.close(reason, closePrice, barIndex, timestamp)
}

func (p *Position) close(reason types.ExitReason, triggerPrice float64, barIndex int, timestamp time.Time) types.ExitResult {
	p.isOpen = false

	return types.ExitResult{
		Reason:            reason,
		TriggerPrice:      triggerPrice,
		BarIndex:          barIndex,
		Time:              timestamp,
		BarsHeld:          p.barsHeld,
		HighestHigh:       p.highestHigh,
		LowestLow:         p.lowestLow,
		TrailingActivated: p.trailingActivated,
		TrailingStopPrice: p.trailingStopPrice,
	}
}

// GetUnrealizedPnL returns the direction-aware mark-to-market PnL in USD.
func (p *Position) GetUnrealizedPnL(currentPrice float64) float64 {
	if p.Direction == types.DirectionLong {
		return (currentPrice - p.EntryPrice) * p.SizeUnits
	}

	return (p.EntryPrice - currentPrice) * p.SizeUnits
}

// GetUnrealizedPnLPct returns the mark-to-market PnL as a fraction of the
// position's entry notional.
func (p *Position) GetUnrealizedPnLPct(currentPrice float64) float64 {
	if p.SizeUSD <= 0 {
		return 0
	}

	return p.GetUnrealizedPnL(currentPrice) / p.SizeUSD
}
