package indicator

import (
	"math"

	"github.com/quantra-lab/quantra/pkg/errors"
)

// epsilon guards divisions against near-zero denominators across the package.
const epsilon = 1e-12

// RollingWindow is a fixed-capacity ring buffer over float64 values that
// maintains a running sum and sum of squares, giving O(1) mean, standard
// deviation, min and max over the last N values.
type RollingWindow struct {
	capacity int
	values   []float64
	head     int
	size     int
	sum      float64
	sumSq    float64
}

// NewRollingWindow creates a rolling window holding up to capacity values.
func NewRollingWindow(capacity int) (*RollingWindow, error) {
	if capacity <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "window capacity must be a positive integer, got %d", capacity)
	}

	return &RollingWindow{
		capacity: capacity,
		values:   make([]float64, capacity),
		head:     0,
		size:     0,
		sum:      0,
		sumSq:    0,
	}, nil
}

// Push appends a value, evicting the oldest value once the window is full.
func (w *RollingWindow) Push(value float64) {
	if w.size == w.capacity {
		oldest := w.values[w.head]
		w.sum -= oldest
		w.sumSq -= oldest * oldest
	} else {
		w.size++
	}

	w.values[w.head] = value
	w.sum += value
	w.sumSq += value * value
	w.head = (w.head + 1) % w.capacity
}

// Size returns the number of values currently held.
func (w *RollingWindow) Size() int {
	return w.size
}

// IsFull reports whether the window holds capacity values.
func (w *RollingWindow) IsFull() bool {
	return w.size == w.capacity
}

// Mean returns the average of the held values, or 0 when empty.
func (w *RollingWindow) Mean() float64 {
	if w.size == 0 {
		return 0
	}

	return w.sum / float64(w.size)
}

// Variance returns the population variance of the held values. Floating-point
// drift in the incremental sums can push the raw result slightly negative, so
// it is floored at 0.
func (w *RollingWindow) Variance() float64 {
	if w.size == 0 {
		return 0
	}

	n := float64(w.size)
	mean := w.sum / n
	variance := w.sumSq/n - mean*mean

	if variance < 0 {
		return 0
	}

	return variance
}

// Std returns the population standard deviation of the held values.
func (w *RollingWindow) Std() float64 {
	return math.Sqrt(w.Variance())
}

// Min returns the smallest held value, or 0 when empty.
func (w *RollingWindow) Min() float64 {
	if w.size == 0 {
		return 0
	}

	minValue := math.Inf(1)
	for i := 0; i < w.size; i++ {
		idx := (w.head - w.size + i + w.capacity*2) % w.capacity
		if w.values[idx] < minValue {
			minValue = w.values[idx]
		}
	}

	return minValue
}

// Max returns the largest held value, or 0 when empty.
func (w *RollingWindow) Max() float64 {
	if w.size == 0 {
		return 0
	}

	maxValue := math.Inf(-1)
	for i := 0; i < w.size; i++ {
		idx := (w.head - w.size + i + w.capacity*2) % w.capacity
		if w.values[idx] > maxValue {
			maxValue = w.values[idx]
		}
	}

	return maxValue
}

// ZScore returns (value - mean) / std over the held values, or 0 when the
// standard deviation is below epsilon.
func (w *RollingWindow) ZScore(value float64) float64 {
	std := w.Std()
	if std < epsilon {
		return 0
	}

	return (value - w.Mean()) / std
}

// Reset discards all held values.
func (w *RollingWindow) Reset() {
	w.head = 0
	w.size = 0
	w.sum = 0
	w.sumSq = 0
}
