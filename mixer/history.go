package mixer

import (
	"github.com/molsim/scf-mix-go/vector"
)

// pair holds one SCF iterate and its residual
type pair struct {
	qInp  []float64
	qDiff []float64
}

// history is a fixed-capacity FIFO buffer of iterate/residual pairs,
// oldest first. Pushed vectors are copied, so callers may keep mutating
// their own buffers between iterations.
type history struct {
	capacity int
	pairs    []pair
}

func newHistory(capacity int) *history {
	return &history{
		capacity: capacity,
		pairs:    make([]pair, 0, capacity),
	}
}

// push appends a new pair, evicting the oldest one when over capacity
func (h *history) push(qInp, qDiff []float64) {
	if len(h.pairs) == h.capacity {
		h.dropOldest(1)
	}
	h.pairs = append(h.pairs, pair{
		qInp:  vector.Copy(qInp),
		qDiff: vector.Copy(qDiff),
	})
}

// at returns the i-th stored pair, counting from the oldest
func (h *history) at(i int) pair {
	return h.pairs[i]
}

// newest returns the most recently pushed pair
func (h *history) newest() pair {
	return h.pairs[len(h.pairs)-1]
}

func (h *history) len() int {
	return len(h.pairs)
}

// dropOldest evicts the n oldest pairs
func (h *history) dropOldest(n int) {
	if n > len(h.pairs) {
		n = len(h.pairs)
	}
	h.pairs = append(h.pairs[:0], h.pairs[n:]...)
}

// reset discards all stored pairs but keeps the configured capacity
func (h *history) reset() {
	h.pairs = h.pairs[:0]
}
