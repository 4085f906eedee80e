package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	c := NewManual(start)
	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, start.Equal(c.Now()))

	c.Advance(90 * time.Second)
	assert.True(t, start.Add(90*time.Second).Equal(c.Now()))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.True(t, later.Equal(c.Now()))
}

func TestSystemClockIsUTCMicroseconds(t *testing.T) {
	now := System().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%1000)
}

func TestSecondsBetween(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(90), SecondsBetween(a, a.Add(90*time.Second+400*time.Millisecond)))
	assert.Zero(t, SecondsBetween(a.Add(time.Minute), a))
	assert.Equal(t, 5*time.Second, Seconds(5))
}
