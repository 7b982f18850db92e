package timing

import "time"

// TickerLimiter uses time.Ticker for simple, consistent slice timing. Good
// enough to hold the simulation near one virtual millisecond per wall
// millisecond.
type TickerLimiter struct {
	ticker *time.Ticker
	ch     <-chan time.Time
}

func NewTickerLimiter() *TickerLimiter {
	ticker := time.NewTicker(SliceDuration)
	return &TickerLimiter{
		ticker: ticker,
		ch:     ticker.C,
	}
}

func (t *TickerLimiter) WaitForNextSlice() {
	<-t.ch
}

func (t *TickerLimiter) Reset() {
	t.ticker.Reset(SliceDuration)
}

func (t *TickerLimiter) Stop() {
	t.ticker.Stop()
}
