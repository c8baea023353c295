// Package testutil provides testing utilities for lockreg tests.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the default starting instant for FakeClock.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// FakeClock is a manually advanced clock. Its Now method can be passed
// wherever a func() time.Time clock is accepted.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock starting at Epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
