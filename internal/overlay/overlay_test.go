package overlay

import (
	"testing"
	"time"

	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/andresmejia3/kiosk/internal/ui/uitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	loop *ui.Loop
	rec  *uitest.Recorder
	m    *Machine
	done int
	base time.Time
	n    int
}

func newHarness() *harness {
	h := &harness{loop: ui.NewLoop(nil), rec: uitest.NewRecorder()}
	h.base = h.loop.Now()
	h.m = New(h.loop, h.rec, DefaultConfig, func() { h.done++ })
	return h
}

func (h *harness) tick() {
	h.n++
	h.loop.Tick(h.base.Add(time.Duration(h.n) * time.Second))
}

func TestStageTimeline(t *testing.T) {
	h := newHarness()
	h.m.Start(2, 1)
	require.True(t, h.m.Active())
	assert.Equal(t, GifPlaying, h.m.Stage())
	o := h.rec.Overlays[0]
	assert.Equal(t, 5, o.Countdown)

	for i := 1; i <= 4; i++ {
		h.tick()
		assert.Equal(t, GifPlaying, h.m.Stage(), "tick %d", i)
		assert.Equal(t, 5-i, o.Countdown)
	}
	h.tick()
	assert.Equal(t, ShowingFinish, h.m.Stage())
	assert.Zero(t, h.m.Elapsed())
	assert.True(t, o.Finished)

	h.tick()
	assert.True(t, h.m.Active())
	h.tick()
	assert.False(t, h.m.Active())
	assert.True(t, o.Destroyed)
	assert.Equal(t, 1, h.done)
	assert.Zero(t, h.loop.Timers())

	h.tick()
	assert.Equal(t, 1, h.done)
}

func TestRestartTearsDownFirst(t *testing.T) {
	h := newHarness()
	h.m.Start(0, 1)
	h.tick()
	h.tick()

	h.m.Start(3, 1)
	assert.Equal(t, 1, h.loop.Timers(), "only the new session ticks")
	assert.Equal(t, 1, h.rec.LiveOverlays())
	assert.Zero(t, h.m.Elapsed())
	assert.Equal(t, GifPlaying, h.m.Stage())

	first := h.rec.Overlays[0]
	assert.True(t, first.Destroyed)

	// The new session needs its full seven ticks.
	for i := 0; i < 6; i++ {
		h.tick()
	}
	assert.True(t, h.m.Active())
	h.tick()
	assert.False(t, h.m.Active())
	assert.Equal(t, 1, h.done)
	assert.Equal(t, 1, first.Destroys)
}

func TestCancel(t *testing.T) {
	h := newHarness()
	h.m.Cancel()

	h.m.Start(1, 1)
	h.tick()
	h.m.Cancel()
	h.m.Cancel()
	assert.False(t, h.m.Active())
	assert.Zero(t, h.loop.Timers())

	for i := 0; i < 10; i++ {
		h.tick()
	}
	assert.Zero(t, h.done, "a cancelled session never completes")
	assert.Equal(t, 1, h.rec.Overlays[0].Destroys)
}
