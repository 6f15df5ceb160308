package recognition

import "sync/atomic"

// Flags are the coordination booleans shared between the camera goroutine
// and the UI context.
type Flags struct {
	active  atomic.Bool
	waiting atomic.Bool
}

// Active reports whether sampled frames are passed to the detector.
func (f *Flags) Active() bool { return f.active.Load() }

// SetActive enables or disables recognition.
func (f *Flags) SetActive(v bool) { f.active.Store(v) }

// Waiting reports whether an unknown face is waiting to be enrolled.
func (f *Flags) Waiting() bool { return f.waiting.Load() }

// SetWaiting sets the enrollment latch.
func (f *Flags) SetWaiting(v bool) { f.waiting.Store(v) }

// Clear drops both flags.
func (f *Flags) Clear() {
	f.active.Store(false)
	f.waiting.Store(false)
}
