package sched

import "time"

// IntervalTimer computes the timeout of a component that wants to be activated
// at a fixed interval. It tracks the next target fire time in wall-clock
// terms. The returned timeout is never negative and never exceeds the
// configured interval, so system clock jumps in either direction cannot stall
// the timer for longer than one interval.
type IntervalTimer struct {
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

func NewIntervalTimer(interval time.Duration) *IntervalTimer {
	return NewIntervalTimerAt(interval, time.Now)
}

// NewIntervalTimerAt uses the given clock instead of time.Now.
func NewIntervalTimerAt(interval time.Duration, now func() time.Time) *IntervalTimer {
	t := &IntervalTimer{interval: interval, now: now}
	t.Rearm()
	return t
}

func (t *IntervalTimer) Interval() time.Duration {
	return t.interval
}

// Timeout reports the clamped remaining time until the next fire.
func (t *IntervalTimer) Timeout() (time.Duration, bool) {
	d := t.next.Sub(t.now())
	if d < 0 {
		d = 0
	}
	if d > t.interval {
		// The clock jumped backward; without the clamp this would produce an
		// enormous timeout and stall the component.
		d = t.interval
	}
	return d, true
}

// Rearm schedules the next fire one interval from now. Called on every
// activation regardless of reason, so a manual or data-triggered activation
// also resets the periodic cadence.
func (t *IntervalTimer) Rearm() {
	t.next = t.now().Add(t.interval)
}
