package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant a StepClock returns when no start is given.
var DefaultEpoch = time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

// StepClock is a deterministic clock for tests.
//
// Each Now() returns the previous value plus Step, so reports created in
// sequence get strictly increasing, reproducible timestamps.
// Set lets a test pin the next value, e.g. to create a back-dated report.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepClock creates a clock whose first Now() returns start.
// A zero start means DefaultEpoch; a non-positive step means one second.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	if step <= 0 {
		step = time.Second
	}
	return &StepClock{next: start.UTC(), step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// Peek returns what the next Now() will return, without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Set pins the value of the next Now().
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = t.UTC()
}

// Advance moves the clock forward by d without returning a value.
func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = c.next.Add(d)
}
