package camera

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresmejia3/kiosk/internal/bufpool"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDriver is a Driver whose Start can be made slow or failing.
type stubDriver struct {
	width, height int
	openErr       error
	startErr      error
	startDelay    time.Duration
	closes        int
	stops         int
	cb            FrameCallback
	bufs          [][]byte
}

func (d *stubDriver) Open() (int, int, error) { return d.width, d.height, d.openErr }
func (d *stubDriver) SetBuffers(b [][]byte) error { d.bufs = b; return nil }
func (d *stubDriver) RegisterFrameCallback(cb FrameCallback) { d.cb = cb }
func (d *stubDriver) Stop() error { d.stops++; return nil }
func (d *stubDriver) Close() error { d.closes++; return nil }
func (d *stubDriver) Start(context.Context) error {
	time.Sleep(d.startDelay)
	return d.startErr
}

func testConfig() Config {
	cfg := DefaultConfig
	cfg.Align = 16
	cfg.StartTimeout = 200 * time.Millisecond
	return cfg
}

func TestInit_DefaultsResolutionAndAllocates(t *testing.T) {
	heap := bufpool.NewHeap(0)
	drv := &stubDriver{}
	s := NewSession(testConfig(), drv, heap, func(types.Frame) {}, nil)

	require.NoError(t, s.Init())
	assert.True(t, s.Initialized())
	assert.Equal(t, 3, s.BufferCount())
	w, h := s.Resolution()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 960, h)
	assert.NotNil(t, drv.cb)

	require.NoError(t, s.Init(), "second init is a no-op")
	_, live := heap.InUse()
	assert.Equal(t, 3, live)

	require.NoError(t, s.Close())
	used, live := heap.InUse()
	assert.Zero(t, used)
	assert.Zero(t, live)
	assert.Equal(t, 1, drv.closes)
}

func TestInit_DegradedBuffers(t *testing.T) {
	size := 64 * 48 * 2
	heap := bufpool.NewHeap(2*size + size/2)
	s := NewSession(testConfig(), &stubDriver{width: 64, height: 48}, heap, func(types.Frame) {}, nil)

	require.NoError(t, s.Init())
	assert.Equal(t, 2, s.BufferCount())
}

func TestInit_AllocationFailureLeavesNothing(t *testing.T) {
	heap := bufpool.NewHeap(64 * 48 * 2)
	drv := &stubDriver{width: 64, height: 48}
	s := NewSession(testConfig(), drv, heap, func(types.Frame) {}, nil)

	err := s.Init()
	require.ErrorIs(t, err, bufpool.ErrExhausted)
	assert.False(t, s.Initialized())
	assert.Zero(t, s.BufferCount())
	assert.Equal(t, 1, drv.closes, "driver closed on abort")
	_, live := heap.InUse()
	assert.Zero(t, live)

	assert.ErrorIs(t, s.Start(context.Background()), ErrNotInitialized)
}

func TestInit_OpenFailure(t *testing.T) {
	s := NewSession(testConfig(), &stubDriver{openErr: errors.New("no sensor")}, bufpool.NewHeap(0), func(types.Frame) {}, nil)
	assert.Error(t, s.Init())
	assert.False(t, s.Initialized())
}

func TestStart_Timeout(t *testing.T) {
	drv := &stubDriver{width: 8, height: 8, startDelay: time.Second}
	s := NewSession(testConfig(), drv, bufpool.NewHeap(0), func(types.Frame) {}, nil)
	require.NoError(t, s.Init())

	assert.ErrorIs(t, s.Start(context.Background()), ErrStartTimeout)
	assert.False(t, s.Enabled())
}

func TestStart_Failure(t *testing.T) {
	drv := &stubDriver{width: 8, height: 8, startErr: errors.New("stream on failed")}
	s := NewSession(testConfig(), drv, bufpool.NewHeap(0), func(types.Frame) {}, nil)
	require.NoError(t, s.Init())

	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.Enabled())
	assert.False(t, s.Running())
}

func TestGate(t *testing.T) {
	drv := &stubDriver{width: 4, height: 4}
	var frames atomic.Int32
	s := NewSession(testConfig(), drv, bufpool.NewHeap(0), func(f types.Frame) {
		frames.Add(1)
	}, nil)
	require.NoError(t, s.Init())
	require.NoError(t, s.Start(context.Background()))
	require.True(t, s.Running())

	drv.cb(drv.bufs[0], 0, 4, 4, 32)
	s.Disable()
	drv.cb(drv.bufs[1], 1, 4, 4, 32)
	assert.Equal(t, int32(1), frames.Load())

	// Restarting a running stream only reopens the gate.
	require.NoError(t, s.Start(context.Background()))
	drv.cb(drv.bufs[1], 1, 4, 4, 32)
	assert.Equal(t, int32(2), frames.Load())

	s.Stop()
	assert.False(t, s.Running())
	assert.Equal(t, 1, drv.stops)
	assert.True(t, s.Initialized(), "buffers survive a stop")
}

func TestSynthetic_StreamsAllFrames(t *testing.T) {
	drv := NewSynthetic(8, 8, 0, 25)
	var frames atomic.Int32
	var badIndex atomic.Bool
	s := NewSession(testConfig(), drv, bufpool.NewHeap(0), func(f types.Frame) {
		if f.Index < 0 || f.Index >= 3 || len(f.Data) != 8*8*2 {
			badIndex.Store(true)
		}
		frames.Add(1)
	}, nil)
	require.NoError(t, s.Init())
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-drv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("synthetic stream did not finish")
	}
	assert.Equal(t, int32(25), frames.Load())
	assert.False(t, badIndex.Load())
	require.NoError(t, s.Close())
}

func TestSynthetic_StopInterrupts(t *testing.T) {
	drv := NewSynthetic(8, 8, 1000, 0)
	s := NewSession(testConfig(), drv, bufpool.NewHeap(0), func(types.Frame) {}, nil)
	require.NoError(t, s.Init())
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	s.Stop()
	select {
	case <-drv.Done():
	default:
		t.Fatal("stop must wait for the stream goroutine")
	}
	require.NoError(t, s.Close())
}
