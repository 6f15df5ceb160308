// Package overlay runs the "making" animation shown over the current screen.
//
// A session plays the animation for GifTicks ticks with a countdown, shows
// the finished image for FinishTicks ticks, then tears itself down and calls
// the done callback.
package overlay

import (
	"time"

	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Stage of an overlay session.
type Stage int

const (
	GifPlaying Stage = iota
	ShowingFinish
)

func (s Stage) String() string {
	if s == ShowingFinish {
		return "showing_finish"
	}
	return "gif_playing"
}

// Config times the stages.
type Config struct {
	Tick        time.Duration
	GifTicks    int
	FinishTicks int
}

// DefaultConfig is 5 s of animation followed by 2 s of the finished image.
var DefaultConfig = Config{Tick: time.Second, GifTicks: 5, FinishTicks: 2}

// Machine holds at most one session. It must only be used from the UI context.
type Machine struct {
	loop   *ui.Loop
	tk     ui.Toolkit
	cfg    Config
	onDone func()

	id      string
	item    int
	timer   *ui.Timer
	visuals ui.OverlayVisuals
	stage   Stage
	elapsed int
}

// New returns an idle machine. onDone runs on the UI context after a session
// completes, never after Cancel.
func New(loop *ui.Loop, tk ui.Toolkit, cfg Config, onDone func()) *Machine {
	return &Machine{loop: loop, tk: tk, cfg: cfg, onDone: onDone}
}

// Start tears down any running session and starts a new one for item over parent.
func (m *Machine) Start(item int, parent ui.Screen) {
	m.teardown()

	m.stage = GifPlaying
	m.elapsed = 0
	m.item = item
	m.id = uuid.NewString()

	m.visuals = m.tk.CreateOverlay(parent, item)
	m.visuals.SetCountdown(m.cfg.GifTicks)
	m.timer = m.loop.NewTimer(m.cfg.Tick, m.tick)

	log.Info().Str("session", m.id).Int("item", item+1).Msg("Coffee is making")
}

// Cancel tears down the running session, if any, without calling onDone.
func (m *Machine) Cancel() {
	if m.Active() {
		log.Debug().Str("session", m.id).Msg("Overlay cancelled")
	}
	m.teardown()
}

// Active reports whether a session exists.
func (m *Machine) Active() bool { return m.visuals != nil }

// Stage of the current session.
func (m *Machine) Stage() Stage { return m.stage }

// Elapsed is the tick count within the current stage.
func (m *Machine) Elapsed() int { return m.elapsed }

func (m *Machine) tick(t *ui.Timer) {
	if t != m.timer {
		// A timer that outlived its session.
		t.Delete()
		return
	}

	m.elapsed++
	switch m.stage {
	case GifPlaying:
		m.visuals.SetCountdown(m.cfg.GifTicks - m.elapsed)
		if m.elapsed >= m.cfg.GifTicks {
			m.visuals.ShowFinish()
			m.stage = ShowingFinish
			m.elapsed = 0
			log.Info().Str("session", m.id).Msg("Making finished")
		}
	case ShowingFinish:
		if m.elapsed >= m.cfg.FinishTicks {
			log.Info().Str("session", m.id).Msg("Finish screen timeout, returning to main")
			m.teardown()
			if m.onDone != nil {
				m.onDone()
			}
		}
	}
}

// teardown releases the tick before the visuals so a late tick never sees
// destroyed elements.
func (m *Machine) teardown() {
	if m.timer != nil {
		m.timer.Delete()
		m.timer = nil
	}
	if m.visuals != nil {
		m.visuals.Destroy()
		m.visuals = nil
	}
	m.stage = GifPlaying
	m.elapsed = 0
}
