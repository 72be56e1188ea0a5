// ABOUTME: Minimal clock abstraction so timer-driven state can be tested deterministically.
// ABOUTME: Provides a real implementation backed by the time package and a manual fake.

package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides the time operations the console needs. The engine and
// roster schedule everything through a Clock so tests can advance time
// manually instead of sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot timer.
type Timer interface {
	Stop() bool
}

// Real is a Clock backed by the standard time package.
type Real struct{}

// New returns the real clock.
func New() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (t realTimer) Stop() bool { return t.t.Stop() }

// Fake is a manually advanced Clock for tests. Timer callbacks run
// synchronously on the goroutine calling Advance, so a test observes all
// effects of a due timer as soon as Advance returns.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFake returns a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in chronological
// order. A callback that schedules a new timer within the advanced window
// (a self-rescheduling tick) fires in the same Advance call.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for f.fireNext(target) {
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// fireNext fires the single earliest timer due at or before target.
// Returns false when nothing is due.
func (f *Fake) fireNext(target time.Time) bool {
	f.mu.Lock()

	var due []*fakeTimer
	for _, t := range f.timers {
		if !t.stopped && !t.fired && !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		f.mu.Unlock()
		return false
	}

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	first := due[0]
	first.fired = true
	if first.at.After(f.now) {
		f.now = first.at
	}
	f.mu.Unlock()

	first.fn()
	return true
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	fn      func()
	fired   bool
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.fired && !t.stopped
	t.stopped = true
	return was
}
