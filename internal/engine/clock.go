package engine

import "sync/atomic"

// Clock hands out run sequence numbers. History is ordered by seq, never by
// created_at, so a run recorded after another always sorts after it even
// when the wall clock steps back.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first Next is start+1; start is usually
// the store's MaxSeq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns a seq larger than any returned or observed before.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out or observed.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe moves the clock forward to seen if it is behind. Another labstat
// process writing to the same history advances the store's seq without
// going through this clock.
func (c *Clock) Observe(seen int64) {
	for {
		cur := c.seq.Load()
		if seen <= cur || c.seq.CompareAndSwap(cur, seen) {
			return
		}
	}
}
