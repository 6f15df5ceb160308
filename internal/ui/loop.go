// Package ui holds the primitives of the single-threaded UI context: the
// serialization lock, the cooperative loop with its timers, and the contracts
// between the controller and whatever renders the screens.
package ui

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Loop runs the UI context. Each Tick takes the lock and then runs, in order,
// events posted since the last tick, due timers, and tick hooks. Nothing
// scheduled on the loop ever runs concurrently with anything else on it.
type Loop struct {
	lock *Lock

	mu     sync.Mutex
	posted []func()

	// Fields below belong to the UI context.
	now    time.Time
	timers []*Timer
	hooks  []func(now time.Time)
}

// NewLoop returns a loop guarded by lock. A nil lock gets a fresh one.
func NewLoop(lock *Lock) *Loop {
	if lock == nil {
		lock = NewLock()
	}
	return &Loop{lock: lock, now: time.Now()}
}

// Lock is the lock every tick runs under.
func (l *Loop) Lock() *Lock { return l.lock }

// Now is the time of the tick in progress, or of the last one.
func (l *Loop) Now() time.Time { return l.now }

// Post queues fn to run on the next tick. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
}

// OnTick registers fn to run at the end of every tick.
func (l *Loop) OnTick(fn func(now time.Time)) {
	l.hooks = append(l.hooks, fn)
}

// Tick runs one scheduling round at time now.
func (l *Loop) Tick(now time.Time) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.now = now

	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	l.runTimers(now)

	for _, fn := range l.hooks {
		fn(now)
	}
}

// Run ticks every period until ctx is done.
func (l *Loop) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Debug().Dur("period", period).Msg("UI loop started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("UI loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Timers is the number of live timers.
func (l *Loop) Timers() int {
	n := 0
	for _, t := range l.timers {
		if !t.deleted {
			n++
		}
	}
	return n
}

func (l *Loop) runTimers(now time.Time) {
	// Callbacks may create or delete timers; iterate over a snapshot.
	snapshot := append([]*Timer(nil), l.timers...)
	for _, t := range snapshot {
		if t.deleted || now.Before(t.next) {
			continue
		}
		if t.repeat == 0 {
			t.Delete()
			continue
		}
		t.next = now.Add(t.period)
		if t.repeat > 0 {
			t.repeat--
		}
		t.fn(t)
		if t.repeat == 0 {
			t.Delete()
		}
	}

	live := l.timers[:0]
	for _, t := range l.timers {
		if !t.deleted {
			live = append(live, t)
		}
	}
	clear(l.timers[len(live):])
	l.timers = live
}
