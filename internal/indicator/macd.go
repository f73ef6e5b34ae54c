package indicator

import (
	"github.com/quantra-lab/quantra/pkg/errors"
)

// MACD is a streaming Moving Average Convergence Divergence: the spread of a
// fast and a slow EMA over closes, with a signal EMA over the spread.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	macd      float64
	signalVal float64
	histogram float64
}

// NewMACD creates a streaming MACD with the given fast, slow and signal periods.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) (*MACD, error) {
	if fastPeriod >= slowPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"MACD fast period (%d) must be smaller than slow period (%d)", fastPeriod, slowPeriod)
	}

	fast, err := NewEMA(fastPeriod)
	if err != nil {
		return nil, err
	}

	slow, err := NewEMA(slowPeriod)
	if err != nil {
		return nil, err
	}

	signal, err := NewEMA(signalPeriod)
	if err != nil {
		return nil, err
	}

	return &MACD{
		fast:   fast,
		slow:   slow,
		signal: signal,
	}, nil
}

// Update feeds the next close and returns the updated (macd, signal, histogram).
func (m *MACD) Update(closePrice float64) (macd, signal, histogram float64) {
	fastValue := m.fast.Update(closePrice)
	slowValue := m.slow.Update(closePrice)

	m.macd = fastValue - slowValue
	m.signalVal = m.signal.Update(m.macd)
	m.histogram = m.macd - m.signalVal

	return m.macd, m.signalVal, m.histogram
}

// Value returns the current (macd, signal, histogram).
func (m *MACD) Value() (macd, signal, histogram float64) {
	return m.macd, m.signalVal, m.histogram
}

// Reset returns the indicator to its uninitialized state.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.macd = 0
	m.signalVal = 0
	m.histogram = 0
}
