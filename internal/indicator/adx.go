package indicator

import (
	"math"

	"github.com/quantra-lab/quantra/pkg/errors"
)

// ADX is a streaming Average Directional Index with its +DI/-DI components.
// True range, +DM and -DM are Wilder-smoothed independently, and the DX series
// is Wilder-smoothed again into the ADX.
//
// The first bar seeds the smoothers with zero directional movement and
// reports (0, 0, 0). That boundary convention is arbitrary but kept for
// numerical reproducibility with historical runs.
type ADX struct {
	trSmoother    *WilderEMA
	plusSmoother  *WilderEMA
	minusSmoother *WilderEMA
	dxSmoother    *WilderEMA

	prevHigh  float64
	prevLow   float64
	prevClose float64
	hasPrev   bool

	adx     float64
	diPlus  float64
	diMinus float64
}

// NewADX creates a streaming ADX for the given period.
func NewADX(period int) (*ADX, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "ADX period must be a positive integer, got %d", period)
	}

	trSmoother, _ := NewWilderEMA(period)
	plusSmoother, _ := NewWilderEMA(period)
	minusSmoother, _ := NewWilderEMA(period)
	dxSmoother, _ := NewWilderEMA(period)

	return &ADX{
		trSmoother:    trSmoother,
		plusSmoother:  plusSmoother,
		minusSmoother: minusSmoother,
		dxSmoother:    dxSmoother,
	}, nil
}

// Update feeds the next bar and returns the updated (adx, diPlus, diMinus).
func (a *ADX) Update(high, low, closePrice float64) (adx, diPlus, diMinus float64) {
	if !a.hasPrev {
		a.trSmoother.Update(high - low)
		a.plusSmoother.Update(0)
		a.minusSmoother.Update(0)
		a.dxSmoother.Update(0)

		a.prevHigh = high
		a.prevLow = low
		a.prevClose = closePrice
		a.hasPrev = true

		a.adx, a.diPlus, a.diMinus = 0, 0, 0

		return 0, 0, 0
	}

	upMove := high - a.prevHigh
	downMove := a.prevLow - low

	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}

	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))

	smoothedTR := a.trSmoother.Update(tr)
	smoothedPlus := a.plusSmoother.Update(plusDM)
	smoothedMinus := a.minusSmoother.Update(minusDM)

	if smoothedTR < epsilon {
		a.diPlus = 0
		a.diMinus = 0
	} else {
		a.diPlus = 100 * smoothedPlus / smoothedTR
		a.diMinus = 100 * smoothedMinus / smoothedTR
	}

	diSum := a.diPlus + a.diMinus

	var dx float64
	if diSum >= epsilon {
		dx = 100 * math.Abs(a.diPlus-a.diMinus) / diSum
	}

	a.adx = a.dxSmoother.Update(dx)

	a.prevHigh = high
	a.prevLow = low
	a.prevClose = closePrice

	return a.adx, a.diPlus, a.diMinus
}

// Value returns the current (adx, diPlus, diMinus).
func (a *ADX) Value() (adx, diPlus, diMinus float64) {
	return a.adx, a.diPlus, a.diMinus
}

// Reset returns the indicator to its uninitialized state.
func (a *ADX) Reset() {
	a.trSmoother.Reset()
	a.plusSmoother.Reset()
	a.minusSmoother.Reset()
	a.dxSmoother.Reset()
	a.prevHigh = 0
	a.prevLow = 0
	a.prevClose = 0
	a.hasPrev = false
	a.adx = 0
	a.diPlus = 0
	a.diMinus = 0
}
