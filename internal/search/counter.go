package search

// AcceptanceCounter tracks accept/reject outcomes over a fixed-size sliding
// window. Enqueue is O(1) regardless of the window size: a boolean ring
// holds the window and a running count tracks the accepted entries.
type AcceptanceCounter struct {
	window   []bool
	head     int
	count    int
	accepted int
}

// NewAcceptanceCounter creates a counter with the given window size.
func NewAcceptanceCounter(windowSize int) *AcceptanceCounter {
	if windowSize < 1 {
		windowSize = 1
	}
	return &AcceptanceCounter{window: make([]bool, windowSize)}
}

// Enqueue records a new outcome. Once the window is full, the oldest
// outcome is evicted and the running count adjusted.
func (c *AcceptanceCounter) Enqueue(accepted bool) {
	if c.count < len(c.window) {
		c.window[(c.head+c.count)%len(c.window)] = accepted
		c.count++
	} else {
		if c.window[c.head] {
			c.accepted--
		}
		c.window[c.head] = accepted
		c.head = (c.head + 1) % len(c.window)
	}
	if accepted {
		c.accepted++
	}
}

// AcceptanceRatio returns the fraction of accepted outcomes among the
// entries currently in the window, or 0 if the window is empty.
func (c *AcceptanceCounter) AcceptanceRatio() float64 {
	if c.count == 0 {
		return 0.0
	}
	return float64(c.accepted) / float64(c.count)
}
