// Package scheduler holds the timing primitives dashboard sessions use to
// coalesce filter changes into queries.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
)

// Debouncer runs fn once delay has passed without another Trigger.
type Debouncer struct {
	clock quartz.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *quartz.Timer
	stopped bool
}

func NewDebouncer(clock quartz.Clock, delay time.Duration, fn func()) *Debouncer {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Debouncer{clock: clock, delay: delay, fn: fn}
}

// Trigger (re)starts the countdown.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	var t *quartz.Timer
	t = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.timer == t
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			d.fn()
		}
	}, "debounce")
	d.timer = t
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush runs a pending call immediately. It reports whether one ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	t := d.timer
	d.timer = nil
	d.mu.Unlock()
	if t == nil {
		return false
	}
	t.Stop()
	d.fn()
	return true
}

// Cancel drops a pending call without running it. It reports whether one was
// pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Stop cancels any pending call; later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Generation tags work so results computed for an outdated request can be
// dropped.
type Generation struct {
	n atomic.Uint64
}

// Next starts a new generation and returns its tag.
func (g *Generation) Next() uint64 { return g.n.Add(1) }

func (g *Generation) Current() uint64 { return g.n.Load() }

func (g *Generation) IsCurrent(tag uint64) bool { return g.n.Load() == tag }
