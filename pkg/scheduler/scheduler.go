// Package scheduler wraps the wall clock so poll loops, retry timers and
// background sweeps can be driven deterministically in tests.
package scheduler

import "time"

// Timer is a cancellable deferred call.
type Timer interface {
	Stop() bool
}

// Scheduler issues the time-based primitives the services need.
type Scheduler interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realScheduler struct{}

// NewReal returns a Scheduler backed by the wall clock.
func NewReal() Scheduler {
	return realScheduler{}
}

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }
