package generic

import (
	"sync"
	"time"
)

// =============================================================================
// CLOCK - Injected source of "now"
// =============================================================================

// Clock supplies the effective current instant. Every component that needs
// time takes a Clock (or an explicit asOf) instead of calling time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. Use in tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// =============================================================================
// OVERRIDE CLOCK - Operator/test "simulated date"
// =============================================================================

// OverrideClock returns a simulated instant while one is set and falls back to
// Base otherwise. One instance is shared process-wide by the server so the
// operator override applies to every resolution until cleared.
//
// Nothing is cached: Clear takes effect on the very next Now.
type OverrideClock struct {
	Base Clock

	mu       sync.RWMutex
	override *time.Time
}

// NewOverrideClock wraps base. A nil base means SystemClock.
func NewOverrideClock(base Clock) *OverrideClock {
	if base == nil {
		base = SystemClock{}
	}
	return &OverrideClock{Base: base}
}

func (c *OverrideClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.override != nil {
		return *c.override
	}
	return c.Base.Now()
}

// Set installs a simulated instant.
func (c *OverrideClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = &t
}

// Clear removes the simulated instant and restores Base.
func (c *OverrideClock) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = nil
}

// Override returns the simulated instant, if any.
func (c *OverrideClock) Override() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.override == nil {
		return time.Time{}, false
	}
	return *c.override, true
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DateLayout is the calendar-date format accepted from operators.
const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD as midnight in loc (UTC when nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
