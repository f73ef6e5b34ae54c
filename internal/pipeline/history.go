package pipeline

// history is a fixed-capacity ring over float64 values with random access by
// age: At(0) is the most recent value, At(k) the value k pushes ago.
type history struct {
	capacity int
	values   []float64
	head     int
	size     int
}

func newHistory(capacity int) *history {
	return &history{
		capacity: capacity,
		values:   make([]float64, capacity),
	}
}

func (h *history) Push(value float64) {
	h.values[h.head] = value
	h.head = (h.head + 1) % h.capacity

	if h.size < h.capacity {
		h.size++
	}
}

// At returns the value k pushes ago. ok is false when fewer than k+1 values
// have been pushed.
func (h *history) At(k int) (value float64, ok bool) {
	if k < 0 || k >= h.size {
		return 0, false
	}

	idx := (h.head - 1 - k + 2*h.capacity) % h.capacity

	return h.values[idx], true
}

func (h *history) Len() int {
	return h.size
}

func (h *history) Reset() {
	h.head = 0
	h.size = 0
}
