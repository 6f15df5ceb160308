package ui

import "time"

// Lock serializes every mutation of screen state. The UI loop holds it for a
// whole tick; the camera goroutine only ever uses TryLock.
type Lock struct {
	ch chan struct{}
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{ch: make(chan struct{}, 1)}
}

// Lock blocks until the lock is held.
func (l *Lock) Lock() {
	l.ch <- struct{}{}
}

// TryLock waits at most timeout for the lock. A timeout of zero or less makes
// a single attempt.
func (l *Lock) TryLock(timeout time.Duration) bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// Unlock releases the lock. Unlocking an unlocked Lock panics.
func (l *Lock) Unlock() {
	select {
	case <-l.ch:
	default:
		panic("ui: unlock of unlocked Lock")
	}
}
