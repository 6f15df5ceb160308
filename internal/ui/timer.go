package ui

import "time"

// RepeatForever is the default repeat count of a new timer.
const RepeatForever = -1

// Timer is a periodic callback on the UI loop. Timers must be created and
// deleted from the UI context.
type Timer struct {
	loop    *Loop
	period  time.Duration
	fn      func(*Timer)
	repeat  int
	next    time.Time
	deleted bool
}

// NewTimer schedules fn every period, first firing one period from now.
func (l *Loop) NewTimer(period time.Duration, fn func(*Timer)) *Timer {
	t := &Timer{
		loop:   l,
		period: period,
		fn:     fn,
		repeat: RepeatForever,
		next:   l.now.Add(period),
	}
	l.timers = append(l.timers, t)
	return t
}

// SetRepeatCount limits the timer to n more firings, after which it deletes
// itself. A negative n repeats forever.
func (t *Timer) SetRepeatCount(n int) {
	t.repeat = n
}

// Delete stops the timer. Safe to call from its own callback and more than once.
func (t *Timer) Delete() {
	if t == nil {
		return
	}
	t.deleted = true
}

// Deleted reports whether the timer has been deleted.
func (t *Timer) Deleted() bool {
	return t.deleted
}
