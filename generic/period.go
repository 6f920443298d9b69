package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// CYCLE ANCHOR - Where each annual earning cycle begins
// =============================================================================

// CycleAnchor fixes the month/day on which every earning cycle starts.
//
// Examples:
//   - Calendar year: January 1
//   - Academic year: September 1
//   - Fiscal year:   April 1
//
// A cycle is labelled by the calendar year in which it starts, so with a
// September 1 anchor, cycle 2026 runs 2026-09-01 .. 2027-08-31.
type CycleAnchor struct {
	Month time.Month
	Day   int

	// Location the anchor midnight is evaluated in. nil means UTC.
	Location *time.Location
}

// Validate rejects anchors that do not exist in every year. Feb 29 is
// therefore malformed.
func (a CycleAnchor) Validate() error {
	if a.Month < time.January || a.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidAnchor, a.Month)
	}
	// 2001 is not a leap year.
	last := time.Date(2001, a.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if a.Day < 1 || a.Day > last {
		return fmt.Errorf("%w: day %d invalid for %s", ErrInvalidAnchor, a.Day, a.Month)
	}
	return nil
}

func (a CycleAnchor) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func (a CycleAnchor) String() string {
	return fmt.Sprintf("%s %d", a.Month, a.Day)
}

// =============================================================================
// CYCLE CALENDAR
// =============================================================================

// CycleStart is the first instant of cycle cycleYear.
func (a CycleAnchor) CycleStart(cycleYear int) time.Time {
	return time.Date(cycleYear, a.Month, a.Day, 0, 0, 0, 0, a.location())
}

// CycleEnd is the last instant of cycle cycleYear: one nanosecond before the
// following cycle starts.
func (a CycleAnchor) CycleEnd(cycleYear int) time.Time {
	return a.CycleStart(cycleYear + 1).Add(-time.Nanosecond)
}

// CycleYearFor returns the label of the cycle containing date. Dates before
// the anchor day-of-year belong to the previous label.
func (a CycleAnchor) CycleYearFor(date time.Time) int {
	year := date.In(a.location()).Year()
	if date.Before(a.CycleStart(year)) {
		return year - 1
	}
	return year
}

// IsWithinCycle reports CycleStart(cycleYear) <= date <= CycleEnd(cycleYear).
func (a CycleAnchor) IsWithinCycle(date time.Time, cycleYear int) bool {
	return a.Window(cycleYear).Contains(date)
}

// Window returns the bounds of cycle cycleYear.
func (a CycleAnchor) Window(cycleYear int) CycleWindow {
	return CycleWindow{
		CycleYear: cycleYear,
		Start:     a.CycleStart(cycleYear),
		End:       a.CycleEnd(cycleYear),
		anchor:    a,
	}
}

// WindowFor returns the window of the cycle containing date.
func (a CycleAnchor) WindowFor(date time.Time) CycleWindow {
	return a.Window(a.CycleYearFor(date))
}

// =============================================================================
// CYCLE WINDOW
// =============================================================================

// CycleWindow is the inclusive [Start, End] span of one earning cycle.
// Windows of consecutive years are contiguous and never overlap.
type CycleWindow struct {
	CycleYear int
	Start     time.Time
	End       time.Time

	anchor CycleAnchor
}

// Contains returns true if t is within [Start, End].
func (w CycleWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Next returns the following cycle.
func (w CycleWindow) Next() CycleWindow { return w.anchor.Window(w.CycleYear + 1) }

// Previous returns the preceding cycle.
func (w CycleWindow) Previous() CycleWindow { return w.anchor.Window(w.CycleYear - 1) }

func (w CycleWindow) String() string {
	return fmt.Sprintf("cycle %d [%s, %s]", w.CycleYear,
		w.Start.Format(DateLayout), w.End.Format(DateLayout))
}
