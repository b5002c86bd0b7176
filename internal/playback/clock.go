package playback

import (
	"sync"
	"time"
)

// Clock is the output timeline the scheduler arranges audio on. Times are
// seconds since an arbitrary epoch, matching how audio hardware clocks report
// a current time that only moves forward.
type Clock interface {
	// Now returns the current time on this clock in seconds.
	Now() float64

	// AfterFunc runs fn after delay seconds and returns a cancellable timer.
	// A non-positive delay fires as soon as possible.
	AfterFunc(delay float64, fn func()) Timer
}

// Timer is a pending clock callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the callback was still
	// pending.
	Stop() bool
}

type realClock struct {
	epoch time.Time
}

// NewClock returns a wall-time backed clock starting at zero.
func NewClock() Clock {
	return &realClock{epoch: time.Now()}
}

func (c *realClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}

func (c *realClock) AfterFunc(delay float64, fn func()) Timer {
	if delay < 0 {
		delay = 0
	}
	return time.AfterFunc(time.Duration(delay*float64(time.Second)), fn)
}

// ManualClock is a deterministic Clock driven by explicit Advance calls.
// Scheduling logic is tested against it so timing assertions do not depend on
// the wall clock.
type ManualClock struct {
	mu     sync.Mutex
	now    float64
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	id    int
	at    float64
	fn    func()
}

// NewManualClock creates a manual clock positioned at start seconds.
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{now: start, timers: make(map[int]*manualTimer)}
}

// Now returns the current manual time.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers fn to run once the clock advances past delay seconds.
func (c *ManualClock) AfterFunc(delay float64, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if delay < 0 {
		delay = 0
	}
	c.nextID++
	t := &manualTimer{clock: c, id: c.nextID, at: c.now + delay, fn: fn}
	c.timers[t.id] = t
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	_, pending := t.clock.timers[t.id]
	delete(t.clock.timers, t.id)
	return pending
}

// Advance moves the clock forward by d seconds, firing due timers in time
// order. Callbacks run without the clock lock held so they may schedule or
// stop other timers.
func (c *ManualClock) Advance(d float64) {
	c.mu.Lock()
	target := c.now + d

	for {
		var due *manualTimer
		for _, t := range c.timers {
			if t.at > target {
				continue
			}
			if due == nil || t.at < due.at || (t.at == due.at && t.id < due.id) {
				due = t
			}
		}
		if due == nil {
			break
		}

		delete(c.timers, due.id)
		if due.at > c.now {
			c.now = due.at
		}
		c.mu.Unlock()
		due.fn()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// PendingTimers returns the number of callbacks not yet fired or stopped.
func (c *ManualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
