package indicator

import (
	"github.com/quantra-lab/quantra/pkg/errors"
)

// BollingerBandsValue is one Bollinger Bands observation.
type BollingerBandsValue struct {
	Upper float64
	Mid   float64
	Lower float64
	// Width is (upper-lower)/close.
	Width float64
	// Position is (close-lower)/(upper-lower). It is nominally in [0,1] but is
	// not clamped, so price outside the bands shows through.
	Position float64
}

// BollingerBands is a streaming Bollinger Bands indicator: an SMA midline via
// a rolling window with bands at k standard deviations.
//
// Before the window is full the bands collapse to the current close, reporting
// width 0 and position 0.5. Kept as-is: downstream consumers depend on the
// exact warmup-length cutoff.
type BollingerBands struct {
	window *RollingWindow
	k      float64
	value  BollingerBandsValue
}

// NewBollingerBands creates streaming Bollinger Bands with the given period
// and standard deviation multiplier.
func NewBollingerBands(period int, k float64) (*BollingerBands, error) {
	if k <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidMultiplier, "Bollinger k must be positive, got %f", k)
	}

	window, err := NewRollingWindow(period)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidPeriod, err, "invalid Bollinger period %d", period)
	}

	return &BollingerBands{
		window: window,
		k:      k,
	}, nil
}

// Update feeds the next close and returns the updated bands.
func (b *BollingerBands) Update(closePrice float64) BollingerBandsValue {
	b.window.Push(closePrice)

	if !b.window.IsFull() {
		b.value = BollingerBandsValue{
			Upper:    closePrice,
			Mid:      closePrice,
			Lower:    closePrice,
			Width:    0,
			Position: 0.5,
		}

		return b.value
	}

	mid := b.window.Mean()
	std := b.window.Std()
	upper := mid + b.k*std
	lower := mid - b.k*std

	var width float64
	if closePrice > epsilon {
		width = (upper - lower) / closePrice
	}

	position := 0.5
	if bandRange := upper - lower; bandRange > epsilon {
		position = (closePrice - lower) / bandRange
	}

	b.value = BollingerBandsValue{
		Upper:    upper,
		Mid:      mid,
		Lower:    lower,
		Width:    width,
		Position: position,
	}

	return b.value
}

// Value returns the current bands.
func (b *BollingerBands) Value() BollingerBandsValue {
	return b.value
}

// Reset returns the indicator to its uninitialized state.
func (b *BollingerBands) Reset() {
	b.window.Reset()
	b.value = BollingerBandsValue{}
}
