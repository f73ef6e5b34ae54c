package indicator

import (
	"github.com/quantra-lab/quantra/pkg/errors"
)

// EMA is a streaming exponential moving average with alpha = 2/(period+1),
// matching the pandas ewm implementation with adjust=False. The first update
// seeds the average with the raw value.
type EMA struct {
	period      int
	alpha       float64
	value       float64
	initialized bool
}

// NewEMA creates a streaming EMA for the given period.
func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "EMA period must be a positive integer, got %d", period)
	}

	return &EMA{
		period:      period,
		alpha:       2.0 / float64(period+1),
		value:       0,
		initialized: false,
	}, nil
}

// Update feeds the next value and returns the updated average.
func (e *EMA) Update(value float64) float64 {
	if !e.initialized {
		e.value = value
		e.initialized = true

		return e.value
	}

	e.value = value*e.alpha + e.value*(1-e.alpha)

	return e.value
}

// Value returns the current average, 0 before the first update.
func (e *EMA) Value() float64 {
	return e.value
}

// Initialized reports whether at least one value has been seen.
func (e *EMA) Initialized() bool {
	return e.initialized
}

// Reset returns the average to its uninitialized state.
func (e *EMA) Reset() {
	e.value = 0
	e.initialized = false
}

// WilderEMA is a streaming exponential smoother with alpha = 1/period, the
// smoothing Wilder used for ATR, RSI and ADX. It is mathematically identical
// to the classic (prev*(n-1)+x)/n recurrence.
type WilderEMA struct {
	period      int
	alpha       float64
	value       float64
	initialized bool
}

// NewWilderEMA creates a streaming Wilder smoother for the given period.
func NewWilderEMA(period int) (*WilderEMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "Wilder EMA period must be a positive integer, got %d", period)
	}

	return &WilderEMA{
		period:      period,
		alpha:       1.0 / float64(period),
		value:       0,
		initialized: false,
	}, nil
}

// Update feeds the next value and returns the updated average.
func (e *WilderEMA) Update(value float64) float64 {
	if !e.initialized {
		e.value = value
		e.initialized = true

		return e.value
	}

	e.value = value*e.alpha + e.value*(1-e.alpha)

	return e.value
}

// Value returns the current average, 0 before the first update.
func (e *WilderEMA) Value() float64 {
	return e.value
}

// Initialized reports whether at least one value has been seen.
func (e *WilderEMA) Initialized() bool {
	return e.initialized
}

// Reset returns the smoother to its uninitialized state.
func (e *WilderEMA) Reset() {
	e.value = 0
	e.initialized = false
}
