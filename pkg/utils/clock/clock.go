package clock

import (
	"sync"
	"time"
)

// Func returns the current time. A nil Func falls back to time.Now.
type Func func() time.Time

func (f Func) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

// Fake is a manually driven clock for tests
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFake creates a clock that stays at start until advanced
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// WithStep makes every Now call advance the clock by step afterwards
func (f *Fake) WithStep(step time.Duration) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = step
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now
	f.now = f.now.Add(f.step)
	return now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Func adapts the fake clock for options taking clock.Func
func (f *Fake) Func() Func {
	return f.Now
}
