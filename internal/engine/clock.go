package engine

import "sync/atomic"

// Clock is a monotonic logical clock for event ordering.
//
// All persisted records are stamped with a strictly increasing seq
// number from this clock, so trace output has a total order that does
// not depend on wall-clock resolution or goroutine interleaving of
// concurrent matrix instances.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
