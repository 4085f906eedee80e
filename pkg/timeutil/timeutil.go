// Package timeutil provides the clock abstraction used by the engine and a
// few helpers for whole-second durations. All stored times are UTC.
package timeutil

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock, truncated to microseconds so values survive a
// round trip through Postgres timestamptz unchanged.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// System returns the wall clock.
func System() Clock { return SystemClock{} }

// ManualClock is a settable clock for tests and deterministic replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a ManualClock starting at t.
func NewManual(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// SecondsBetween returns the whole seconds elapsed from start to end,
// never negative.
func SecondsBetween(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Seconds converts a whole-second count into a Duration.
func Seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

// Ptr returns a pointer to a copy of t. Handy for nullable timestamps.
func Ptr(t time.Time) *time.Time {
	return &t
}
