package core

import "time"

// Clock supplies the reference time for validation and zone expansion.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Tests and previews use it
// to make a pass reproducible.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
