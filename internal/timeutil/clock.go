// Package timeutil lets the registry stamp creation times through a clock
// that tests can pin.
package timeutil

import (
	"sync/atomic"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// MockClock stands still until Advance is called. Safe for concurrent use.
type MockClock struct {
	base   time.Time
	offset atomic.Int64
}

// NewMockClock returns a MockClock reading t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{base: t}
}

func (c *MockClock) Now() time.Time {
	return c.base.Add(time.Duration(c.offset.Load()))
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.offset.Add(int64(d))
}
