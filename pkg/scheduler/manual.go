package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Manual is a hand-cranked Scheduler for tests. Tickers fire only when
// Tick is called and timers fire when Advance moves the clock past them.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*manualTimer
	tickers []*manualTicker
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 16)}
	m.tickers = append(m.tickers, t)
	return t
}

// TickAll delivers one tick at the current time to every ticker created so
// far. Ticks to an undrained ticker are dropped, as with time.Ticker.
func (m *Manual) TickAll() {
	m.mu.Lock()
	now := m.now
	tickers := append([]*manualTicker(nil), m.tickers...)
	m.mu.Unlock()
	for _, t := range tickers {
		select {
		case t.ch <- now:
		default:
		}
	}
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{at: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that came due,
// in firing order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var due []*manualTimer
	var rest []*manualTimer
	for _, t := range m.timers {
		if !t.stopped.Load() && !t.at.After(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	m.timers = rest
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// PendingTimers reports how many deferred calls are still scheduled.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped atomic.Bool
}

func (t *manualTimer) Stop() bool {
	return t.stopped.CompareAndSwap(false, true)
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}
