package telemetry

import (
	"sync"
	"time"
)

// Limits of the cadence settings.
const (
	MinSampleInterval = 100 * time.Millisecond
	MaxFlushEvery     = 100
)

// Cadence decides when to collect and when to flush.
type Cadence struct {
	lock        sync.Mutex
	interval    time.Duration
	flushEvery  int
	lastCollect time.Time
	collected   int
}

// NewCadence creates a Cadence.
func NewCadence(interval time.Duration, flushEvery int) *Cadence {
	if interval < MinSampleInterval {
		interval = MinSampleInterval
	}
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &Cadence{interval: interval, flushEvery: flushEvery}
}

// IsCollectionTime tells if a sample is due at now, and if so, starts the
// next interval.
func (c *Cadence) IsCollectionTime(now time.Time) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.lastCollect.IsZero() && now.Sub(c.lastCollect) < c.interval {
		return false
	}
	c.lastCollect = now
	c.collected++
	return true
}

// IsFlushTime tells if enough samples were collected since the last
// flush, and if so, restarts counting.
func (c *Cadence) IsFlushTime() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.collected < c.flushEvery {
		return false
	}
	c.collected = 0
	return true
}

// SampleInterval gets the sampling interval.
func (c *Cadence) SampleInterval() time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.interval
}

// SetSampleInterval sets the sampling interval.
func (c *Cadence) SetSampleInterval(interval time.Duration) bool {
	if interval < MinSampleInterval {
		return false
	}
	c.lock.Lock()
	c.interval = interval
	c.lock.Unlock()
	return true
}

// FlushEvery gets the number of samples between flushes.
func (c *Cadence) FlushEvery() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.flushEvery
}

// SetFlushEvery sets the number of samples between flushes.
func (c *Cadence) SetFlushEvery(n int) bool {
	if n < 1 || n > MaxFlushEvery {
		return false
	}
	c.lock.Lock()
	c.flushEvery = n
	c.lock.Unlock()
	return true
}
