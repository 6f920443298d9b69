package generic_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/club-loyalty/generic"
)

func TestOverrideClock(t *testing.T) {
	// GIVEN: An override clock over a fixed base
	// WHEN: Setting and clearing a simulated instant
	// THEN: Now follows the override until it is cleared

	base := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	clock := generic.NewOverrideClock(generic.FixedClock{At: base})

	assert.Equal(t, base, clock.Now())
	_, ok := clock.Override()
	assert.False(t, ok)

	sim := time.Date(2027, time.August, 20, 0, 0, 0, 0, time.UTC)
	clock.Set(sim)
	assert.Equal(t, sim, clock.Now())
	got, ok := clock.Override()
	assert.True(t, ok)
	assert.Equal(t, sim, got)

	clock.Clear()
	assert.Equal(t, base, clock.Now())
}

func TestOverrideClock_Concurrent(t *testing.T) {
	// GIVEN: One clock shared by readers and a writer
	// WHEN: Reading while setting and clearing
	// THEN: Every read is either the base or the override

	base := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	sim := base.AddDate(1, 0, 0)
	clock := generic.NewOverrideClock(generic.FixedClock{At: base})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				now := clock.Now()
				if !now.Equal(base) && !now.Equal(sim) {
					t.Errorf("unexpected instant %s", now)
					return
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		clock.Set(sim)
		clock.Clear()
	}
	wg.Wait()
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, generic.SystemClock{}.Now().Location())
	assert.Equal(t, time.UTC, generic.NewOverrideClock(nil).Now().Location())
}

func TestParseDateAndEndOfDay(t *testing.T) {
	// GIVEN: A calendar date
	// WHEN: Parsing and taking the end of that day
	// THEN: Midnight and the last nanosecond of the day

	d, err := generic.ParseDate("2024-02-29", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), generic.EndOfDay(d))

	_, err = generic.ParseDate("2025-02-29", nil)
	assert.Error(t, err)
}
