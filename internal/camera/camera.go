// Package camera owns the capture session: driver bring-up, the capture
// buffer pool, and the enable gate in front of the frame callback.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/kiosk/internal/bufpool"
	"github.com/andresmejia3/kiosk/internal/metrics"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotInitialized is returned by Start before a successful Init.
	ErrNotInitialized = errors.New("camera not initialized")
	// ErrStartTimeout is returned when the stream does not come up in time.
	ErrStartTimeout = errors.New("camera stream start timed out")
)

// FrameCallback is invoked by a driver once per captured frame, on the
// driver's own goroutine. buf is one of the buffers given to SetBuffers and
// is only valid until the callback returns.
type FrameCallback func(buf []byte, index, width, height, length int)

// Driver is the video device.
type Driver interface {
	// Open prepares the device and reports its native resolution. Zero means unknown.
	Open() (width, height int, err error)
	SetBuffers(bufs [][]byte) error
	RegisterFrameCallback(cb FrameCallback)
	// Start begins streaming on a driver goroutine.
	Start(ctx context.Context) error
	// Stop ends streaming and waits for the last callback to return.
	Stop() error
	Close() error
}

// Config sizes the capture.
type Config struct {
	MaxBuffers    int
	BitsPerPixel  int
	DefaultWidth  int
	DefaultHeight int
	// Align is the buffer alignment, the cache line size of the capture heap.
	Align        int
	StartTimeout time.Duration
}

// DefaultConfig captures RGB565 at 1280x960 into up to 3 buffers.
var DefaultConfig = Config{
	MaxBuffers:    3,
	BitsPerPixel:  16,
	DefaultWidth:  1280,
	DefaultHeight: 960,
	Align:         64,
	StartTimeout:  time.Second,
}

// Session is created lazily on the first camera view and lives until Close.
// Init, Start, Stop and Close are called from the UI context.
type Session struct {
	cfg     Config
	driver  Driver
	alloc   bufpool.Allocator
	onFrame func(types.Frame)
	metrics *metrics.Metrics

	id            string
	pool          *bufpool.Pool
	width, height int
	initialized   bool

	enabled atomic.Bool
	running atomic.Bool
}

// NewSession returns an uninitialized session. onFrame receives every frame
// that arrives while the gate is enabled.
func NewSession(cfg Config, driver Driver, alloc bufpool.Allocator, onFrame func(types.Frame), m *metrics.Metrics) *Session {
	return &Session{cfg: cfg, driver: driver, alloc: alloc, onFrame: onFrame, metrics: m}
}

// Init opens the driver and allocates the buffers. It is a no-op once
// initialized. On failure nothing stays allocated and the driver is closed.
func (s *Session) Init() error {
	if s.initialized {
		return nil
	}

	w, h, err := s.driver.Open()
	if err != nil {
		return fmt.Errorf("camera open failed: %w", err)
	}
	if w <= 0 || h <= 0 {
		w, h = s.cfg.DefaultWidth, s.cfg.DefaultHeight
	}
	log.Info().Int("width", w).Int("height", h).Msg("Camera native resolution")

	size := w * h * s.cfg.BitsPerPixel / 8
	pool, err := bufpool.Acquire(s.alloc, s.cfg.MaxBuffers, size, s.cfg.Align)
	if err != nil {
		log.Error().Err(err).Int("max", s.cfg.MaxBuffers).Msg("Failed to allocate camera buffers, aborting camera init")
		if cerr := s.driver.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Camera close failed")
		}
		return err
	}

	s.driver.RegisterFrameCallback(s.callback)
	s.pool = pool
	s.width, s.height = w, h
	s.id = uuid.NewString()
	s.initialized = true
	s.metrics.RecordCameraBuffers(pool.Count())

	log.Info().Str("session", s.id).Int("buffers", pool.Count()).Int("size", size).Msg("Camera hardware initialized")
	return nil
}

// Start enables the gate and starts the stream, waiting at most StartTimeout.
// With the stream already running it only re-enables the gate.
func (s *Session) Start(ctx context.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.running.Load() {
		s.enabled.Store(true)
		return nil
	}

	s.enabled.Store(true)
	done := make(chan error, 1)
	go func() {
		if err := s.driver.SetBuffers(s.pool.Buffers()); err != nil {
			done <- fmt.Errorf("set video buffers: %w", err)
			return
		}
		if err := s.driver.Start(ctx); err != nil {
			done <- fmt.Errorf("start video stream: %w", err)
			return
		}
		s.running.Store(true)
		done <- nil
	}()

	timer := time.NewTimer(s.cfg.StartTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			s.enabled.Store(false)
			log.Error().Err(err).Msg("Camera stream failed to start")
			return err
		}
		log.Info().Str("session", s.id).Msg("Camera stream started")
		return nil
	case <-timer.C:
		s.enabled.Store(false)
		log.Error().Dur("timeout", s.cfg.StartTimeout).Msg("Camera init task timeout")
		return ErrStartTimeout
	}
}

// Stop disables the gate and stops the stream. Buffers stay allocated.
func (s *Session) Stop() {
	s.enabled.Store(false)
	if !s.running.Load() {
		return
	}
	log.Info().Str("session", s.id).Msg("Stopping camera stream")
	if err := s.driver.Stop(); err != nil {
		log.Warn().Err(err).Msg("Camera stream stop failed")
	}
	s.running.Store(false)
}

// Disable closes the gate without stopping the stream.
func (s *Session) Disable() {
	s.enabled.Store(false)
}

// Close stops the stream, frees the buffers and closes the driver.
func (s *Session) Close() error {
	s.Stop()
	if !s.initialized {
		return nil
	}
	s.pool.Release()
	s.pool = nil
	s.initialized = false
	s.metrics.RecordCameraBuffers(0)
	return s.driver.Close()
}

// Initialized reports whether Init succeeded.
func (s *Session) Initialized() bool { return s.initialized }

// Running reports whether the stream is up.
func (s *Session) Running() bool { return s.running.Load() }

// Enabled reports whether frames reach the callback.
func (s *Session) Enabled() bool { return s.enabled.Load() }

// BufferCount is the achieved number of buffers, zero before Init.
func (s *Session) BufferCount() int {
	if s.pool == nil {
		return 0
	}
	return s.pool.Count()
}

// Resolution is the capture size chosen at Init.
func (s *Session) Resolution() (int, int) { return s.width, s.height }

func (s *Session) callback(buf []byte, index, width, height, length int) {
	if !s.enabled.Load() {
		return
	}
	if length > len(buf) {
		length = len(buf)
	}
	s.onFrame(types.Frame{Data: buf[:length], Index: index, Width: width, Height: height})
}
