package commands

import "time"

// SetClock replaces the wall clock and returns a restore func.
func SetClock(now func() time.Time) (restore func()) {
	prev := clock
	clock = now
	return func() { clock = prev }
}
