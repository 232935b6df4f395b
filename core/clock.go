package core

import (
	"sync"
	"time"
)

// Clock supplies the current time for deadline checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// OffsetClock shifts a base clock forward by an adjustable offset. Local
// networks use it to fast-forward past auction deadlines.
type OffsetClock struct {
	base   Clock
	mu     sync.RWMutex
	offset time.Duration
}

// NewOffsetClock wraps base. A nil base means the wall clock.
func NewOffsetClock(base Clock) *OffsetClock {
	if base == nil {
		base = SystemClock()
	}
	return &OffsetClock{base: base}
}

func (c *OffsetClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.Now().Add(c.offset)
}

// Advance moves the clock forward by d and returns the new time.
func (c *OffsetClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.offset += d
	c.mu.Unlock()
	return c.Now()
}

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
