// Package digits provides the bounded last-digit history buffer shared by
// every signal generator. Digits are stored most-recent-first: Push inserts
// at the front and evicts from the back once capacity is exceeded.
//
// Two independently-capped instances are fed from the same tick stream: a
// short window of 10 for the UI cursor display and a long window of 100 for
// percentage statistics. Both observe every digit in the same order.
package digits

// History is a bounded, order-preserving buffer of digits 0-9.
// Not safe for concurrent use; all pushes happen on the session loop.
type History struct {
	buf []int
	cap int
}

// NewHistory creates a history with the given capacity. Minimum capacity is 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		buf: make([]int, 0, capacity),
		cap: capacity,
	}
}

// Push inserts digit at the front, evicting the oldest entry when full.
// Digits outside [0,9] are ignored.
func (h *History) Push(digit int) {
	if digit < 0 || digit > 9 {
		return
	}
	if len(h.buf) < h.cap {
		h.buf = append(h.buf, 0)
	}
	copy(h.buf[1:], h.buf)
	h.buf[0] = digit
}

// Len returns the current number of digits.
func (h *History) Len() int {
	return len(h.buf)
}

// Cap returns the configured capacity.
func (h *History) Cap() int {
	return h.cap
}

// Front returns the most recent digit, or -1 when empty.
func (h *History) Front() int {
	if len(h.buf) == 0 {
		return -1
	}
	return h.buf[0]
}

// Recent returns up to n digits, most-recent-first. The returned slice is
// a copy and safe to retain.
func (h *History) Recent(n int) []int {
	if n > len(h.buf) {
		n = len(h.buf)
	}
	out := make([]int, n)
	copy(out, h.buf[:n])
	return out
}

// Snapshot returns a copy of the full contents, most-recent-first.
func (h *History) Snapshot() []int {
	return h.Recent(len(h.buf))
}

// Counts returns the frequency of each digit 0-9 as a fraction of the
// current length. All zeros when the history is empty.
func (h *History) Counts() [10]float64 {
	var counts [10]float64
	if len(h.buf) == 0 {
		return counts
	}
	for _, d := range h.buf {
		counts[d]++
	}
	n := float64(len(h.buf))
	for i := range counts {
		counts[i] /= n
	}
	return counts
}

// Reset discards all contents.
func (h *History) Reset() {
	h.buf = h.buf[:0]
}
