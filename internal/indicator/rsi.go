package indicator

import (
	"github.com/quantra-lab/quantra/pkg/errors"
)

// RSI is a streaming Relative Strength Index built from separate Wilder
// smoothers over close-to-close gains and losses.
//
// The first close seeds both smoothers with zero and reports the neutral 50.
// When the average loss is below epsilon, the output is 100 if there is any
// average gain and 50 otherwise.
type RSI struct {
	gainSmoother *WilderEMA
	lossSmoother *WilderEMA
	prevClose    float64
	hasPrev      bool
	value        float64
}

// NewRSI creates a streaming RSI for the given period.
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "RSI period must be a positive integer, got %d", period)
	}

	gainSmoother, _ := NewWilderEMA(period)
	lossSmoother, _ := NewWilderEMA(period)

	return &RSI{
		gainSmoother: gainSmoother,
		lossSmoother: lossSmoother,
		value:        50,
	}, nil
}

// Update feeds the next close and returns the updated RSI in [0, 100].
func (r *RSI) Update(closePrice float64) float64 {
	if !r.hasPrev {
		r.gainSmoother.Update(0)
		r.lossSmoother.Update(0)
		r.prevClose = closePrice
		r.hasPrev = true
		r.value = 50

		return r.value
	}

	delta := closePrice - r.prevClose
	r.prevClose = closePrice

	var gain, loss float64
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	avgGain := r.gainSmoother.Update(gain)
	avgLoss := r.lossSmoother.Update(loss)

	if avgLoss < epsilon {
		if avgGain > 0 {
			r.value = 100
		} else {
			r.value = 50
		}

		return r.value
	}

	rs := avgGain / avgLoss
	r.value = 100 - 100/(1+rs)

	return r.value
}

// Value returns the current RSI, 50 before the first update.
func (r *RSI) Value() float64 {
	return r.value
}

// Reset returns the indicator to its uninitialized state.
func (r *RSI) Reset() {
	r.gainSmoother.Reset()
	r.lossSmoother.Reset()
	r.prevClose = 0
	r.hasPrev = false
	r.value = 50
}
