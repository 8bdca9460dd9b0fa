package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time for test clocks.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// FixedClock is a settable wall clock for tests.
//
// Unlike time.Now, FixedClock only moves when told to. This keeps expiry
// timestamps and ledger entries stable across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock reading t. A zero t means Epoch.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = Epoch
	}
	return &FixedClock{now: t}
}

// Now returns the current reading. Its signature matches time.Now so the
// method value can be injected directly.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
