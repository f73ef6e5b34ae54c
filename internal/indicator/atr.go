package indicator

import (
	"math"

	"github.com/quantra-lab/quantra/pkg/errors"
)

// ATR is a streaming Average True Range: the Wilder-smoothed true range.
// The first bar has no previous close, so its true range is high-low.
type ATR struct {
	smoother  *WilderEMA
	prevClose float64
	hasPrev   bool
	lastTR    float64
}

// NewATR creates a streaming ATR for the given period.
func NewATR(period int) (*ATR, error) {
	smoother, err := NewWilderEMA(period)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidPeriod, err, "invalid ATR period %d", period)
	}

	return &ATR{
		smoother:  smoother,
		prevClose: 0,
		hasPrev:   false,
		lastTR:    0,
	}, nil
}

// Update feeds the next bar and returns the updated ATR.
func (a *ATR) Update(high, low, closePrice float64) float64 {
	tr := high - low
	if a.hasPrev {
		tr = math.Max(tr, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	}

	a.lastTR = tr
	a.prevClose = closePrice
	a.hasPrev = true

	return a.smoother.Update(tr)
}

// Value returns the current ATR, 0 before the first update.
func (a *ATR) Value() float64 {
	return a.smoother.Value()
}

// TrueRange returns the true range of the most recent bar.
func (a *ATR) TrueRange() float64 {
	return a.lastTR
}

// Reset returns the ATR to its uninitialized state.
func (a *ATR) Reset() {
	a.smoother.Reset()
	a.prevClose = 0
	a.hasPrev = false
	a.lastTR = 0
}
