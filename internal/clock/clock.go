// Package clock abstracts wall time so staleness checks and the blocklist
// availability cutover are testable without sleeping or stubbing time.Now
// globally.
package clock

import "time"

// Clock supplies the current wall time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }
