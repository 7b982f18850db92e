package timing

import "time"

// SliceDuration is the wall-clock length of one simulation slice: one
// simulated millisecond.
const SliceDuration = time.Millisecond

// Limiter paces the host loop that advances simulated time.
type Limiter interface {
	// WaitForNextSlice blocks until the next simulation slice is due.
	// Returns immediately if timing is behind schedule.
	WaitForNextSlice()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for free-running mode).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextSlice() {}
func (n *noOpLimiter) Reset()            {}
