package indicator

import (
	"github.com/quantra-lab/quantra/pkg/errors"
)

// DonchianValue is one Donchian channel observation.
type DonchianValue struct {
	Upper float64
	Lower float64
	Mid   float64
}

// Donchian is a streaming Donchian channel over the highest high and lowest
// low of the prior N bars, strictly excluding the current bar. The exclusion
// is achieved by pushing the previous bar's extrema into the windows before
// reading them, deferring the first push until a second bar arrives.
//
// Until a prior bar exists the channel is (0, 0, 0).
type Donchian struct {
	highs *RollingWindow
	lows  *RollingWindow

	pendingHigh float64
	pendingLow  float64
	hasPending  bool

	value DonchianValue
}

// NewDonchian creates a streaming Donchian channel over the prior period bars.
func NewDonchian(period int) (*Donchian, error) {
	highs, err := NewRollingWindow(period)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidPeriod, err, "invalid Donchian period %d", period)
	}

	lows, _ := NewRollingWindow(period)

	return &Donchian{
		highs: highs,
		lows:  lows,
	}, nil
}

// Update feeds the next bar's extrema and returns the channel over the bars
// seen before this one.
func (d *Donchian) Update(high, low float64) DonchianValue {
	if d.hasPending {
		d.highs.Push(d.pendingHigh)
		d.lows.Push(d.pendingLow)
	}

	d.pendingHigh = high
	d.pendingLow = low
	d.hasPending = true

	if d.highs.Size() == 0 {
		d.value = DonchianValue{}

		return d.value
	}

	upper := d.highs.Max()
	lower := d.lows.Min()

	d.value = DonchianValue{
		Upper: upper,
		Lower: lower,
		Mid:   (upper + lower) / 2,
	}

	return d.value
}

// Value returns the current channel.
func (d *Donchian) Value() DonchianValue {
	return d.value
}

// Ready reports whether the full prior-bar window has been seen.
func (d *Donchian) Ready() bool {
	return d.highs.IsFull()
}

// Reset returns the indicator to its uninitialized state.
func (d *Donchian) Reset() {
	d.highs.Reset()
	d.lows.Reset()
	d.pendingHigh = 0
	d.pendingLow = 0
	d.hasPending = false
	d.value = DonchianValue{}
}
