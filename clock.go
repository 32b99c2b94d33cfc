package graphlake

import "time"

// Clock abstracts wall time so the polling and retry state machines are
// testable without real delays.
type Clock interface {
	Now() time.Time
	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall-clock implementation used by default.
var SystemClock Clock = realClock{}
