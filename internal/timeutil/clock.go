package timeutil

import (
	"time"
)

// Clock supplies the current time. Elapsed-time and alert computation go
// through a Clock so tests can pin the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Test helper.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// Now returns the current time in UTC. All stored timestamps are UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ElapsedMinutes returns the whole minutes between from and now, floored.
// Negative differences clamp to zero.
func ElapsedMinutes(from, now time.Time) int {
	d := now.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Common layouts for formatting
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
