// Package deferred moves work onto the UI context one tick later.
//
// Actions are scheduled from the camera goroutine (holding the UI lock) or
// from a UI event handler that must not tear down the screen that raised the
// event. They are drained once per UI tick, after their delay, and each runs
// exactly once. At most one action per kind is in flight; duplicates are
// dropped, not queued.
package deferred

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/kiosk/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Kind of deferred action.
type Kind int

const (
	RecognizedFace Kind = iota
	DeleteFace
	NavigateBack
	numKinds
)

func (k Kind) String() string {
	switch k {
	case RecognizedFace:
		return "recognized_face"
	case DeleteFace:
		return "delete_face"
	case NavigateBack:
		return "navigate_back"
	default:
		return "unknown"
	}
}

// Action is a unit of deferred work. Slot is used by RecognizedFace and DeleteFace.
type Action struct {
	Kind Kind
	Slot int
}

// Handler applies actions on the UI context.
type Handler interface {
	ApplyRecognized(slot int)
	ApplyDelete(slot int)
	ApplyBack()
}

// Delays before each kind becomes due.
type Delays struct {
	Recognized time.Duration
	Delete     time.Duration
	Back       time.Duration
}

// DefaultDelays match the device timers.
var DefaultDelays = Delays{
	Recognized: 100 * time.Millisecond,
	Delete:     50 * time.Millisecond,
	Back:       50 * time.Millisecond,
}

type pending struct {
	Action
	due time.Time
}

// Machine is a single-consumer queue of pending actions.
type Machine struct {
	handler Handler
	delays  Delays
	metrics *metrics.Metrics

	inFlight [numKinds]atomic.Bool

	mu    sync.Mutex
	queue []pending
}

// New returns an empty machine applying actions through h.
func New(h Handler, d Delays, m *metrics.Metrics) *Machine {
	return &Machine{handler: h, delays: d, metrics: m}
}

// Schedule queues a. It returns false, dropping a, when an action of the same
// kind is already in flight.
func (m *Machine) Schedule(now time.Time, a Action) bool {
	if a.Kind < 0 || a.Kind >= numKinds {
		return false
	}
	if !m.inFlight[a.Kind].CompareAndSwap(false, true) {
		log.Debug().Stringer("kind", a.Kind).Int("slot", a.Slot).Msg("Deferred action already in flight, dropped")
		m.metrics.RecordDeferred(a.Kind.String(), "dropped")
		return false
	}

	m.mu.Lock()
	m.queue = append(m.queue, pending{Action: a, due: now.Add(m.delay(a.Kind))})
	m.mu.Unlock()

	log.Debug().Stringer("kind", a.Kind).Int("slot", a.Slot).Msg("Deferred action scheduled")
	m.metrics.RecordDeferred(a.Kind.String(), "scheduled")
	return true
}

// Pending reports whether an action of kind k is in flight.
func (m *Machine) Pending(k Kind) bool {
	return m.inFlight[k].Load()
}

// Drain applies every action due at now, in scheduling order, and returns how
// many ran. It must be called from the UI context.
func (m *Machine) Drain(now time.Time) int {
	m.mu.Lock()
	var due []pending
	rest := m.queue[:0]
	for _, p := range m.queue {
		if now.Before(p.due) {
			rest = append(rest, p)
		} else {
			due = append(due, p)
		}
	}
	clear(m.queue[len(rest):])
	m.queue = rest
	m.mu.Unlock()

	for _, p := range due {
		// Cleared before the handler runs so the handler may schedule again.
		m.inFlight[p.Kind].Store(false)
		m.apply(p.Action)
	}
	return len(due)
}

// Reset drops every queued action and clears the in-flight flags.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.queue = nil
	m.mu.Unlock()
	for i := range m.inFlight {
		m.inFlight[i].Store(false)
	}
}

// Len is the number of queued actions.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Machine) apply(a Action) {
	log.Debug().Stringer("kind", a.Kind).Int("slot", a.Slot).Msg("Applying deferred action")
	switch a.Kind {
	case RecognizedFace:
		m.handler.ApplyRecognized(a.Slot)
	case DeleteFace:
		m.handler.ApplyDelete(a.Slot)
	case NavigateBack:
		m.handler.ApplyBack()
	}
	m.metrics.RecordDeferred(a.Kind.String(), "applied")
}

func (m *Machine) delay(k Kind) time.Duration {
	switch k {
	case RecognizedFace:
		return m.delays.Recognized
	case DeleteFace:
		return m.delays.Delete
	default:
		return m.delays.Back
	}
}
