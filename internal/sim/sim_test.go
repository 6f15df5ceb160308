package sim

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andresmejia3/kiosk/internal/camera"
	"github.com/andresmejia3/kiosk/internal/controller"
	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/recognition"
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/andresmejia3/kiosk/internal/ui/uitest"
	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedding(t *testing.T) {
	a := Embedding("alice")
	assert.Equal(t, a, Embedding("alice"))

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-4)

	b := Embedding("bob")
	assert.Less(t, utils.CosineDist(a[:], a[:]), 1e-6)
	assert.Greater(t, utils.CosineDist(a[:], b[:]), recognition.DefaultThreshold)
}

func TestDetector(t *testing.T) {
	scene := &Scene{}
	d := &Detector{Scene: scene}

	cands, err := d.Detect(types.Frame{Width: 8, Height: 8})
	require.NoError(t, err)
	assert.Empty(t, cands)

	scene.Enter("carol")
	cands, err = d.Detect(types.Frame{Width: 8, Height: 8})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	want := Embedding("carol")
	assert.Equal(t, want[:], cands[0].Vec)
	assert.Equal(t, types.Region{2, 6, 6, 2}, cands[0].Loc)

	scene.Leave()
	assert.Empty(t, scene.Who())
}

func TestSceneFill(t *testing.T) {
	scene := &Scene{}
	empty := make([]byte, 8)
	scene.Fill(0, empty)

	scene.Enter("dave")
	tinted := make([]byte, 8)
	scene.Fill(0, tinted)
	assert.NotEqual(t, empty, tinted)
	assert.Equal(t, byte(0xF8), tinted[1]&0xF8)
}

// syncBuffer is a bytes.Buffer safe for the camera goroutine to write.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestRunner_VisitorsEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end kiosk run in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scene := &Scene{}
	driver := camera.NewSynthetic(16, 16, 500, 0)
	driver.Fill = scene.Fill
	faces := store.New(kv.NewMemory(), 2)
	out := &syncBuffer{}

	cfg := controller.DefaultConfig
	cfg.Overlay.Tick = 5 * time.Millisecond
	cfg.Camera.Align = 16

	loop := ui.NewLoop(nil)
	ctrl := controller.New(ctx, cfg, controller.Deps{
		Loop:     loop,
		Toolkit:  uitest.NewRecorder(),
		Faces:    faces,
		Driver:   driver,
		Detector: func() (recognition.Detector, error) { return &Detector{Scene: scene}, nil },
		Out:      out,
	})

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		loop.Run(loopCtx, time.Millisecond)
		close(loopDone)
	}()

	r := &Runner{Loop: loop, Ctrl: ctrl, Scene: scene, Timeout: 2 * time.Second, Poll: 2 * time.Millisecond}

	steps := []struct {
		name string
		want Outcome
	}{
		{"alice", Enrolled},
		{"alice", Served},
		{"bob", Enrolled},
		{"carol", TurnedAway}, // store holds two faces
		{"bob", Served},
	}
	for _, step := range steps {
		got, err := r.Visit(ctx, step.name)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.want, got, step.name)
	}

	assert.Equal(t, 2, faces.Count())
	assert.Contains(t, out.String(), "COFFEE_FOR: alice\n")
	assert.Contains(t, out.String(), "COFFEE_FOR: bob\n")
	assert.NotContains(t, out.String(), "carol")

	var closeErr error
	require.NoError(t, r.do(ctx, func() { closeErr = ctrl.Close() }))
	assert.NoError(t, closeErr)
	stopLoop()
	<-loopDone
}
