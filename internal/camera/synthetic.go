package camera

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Synthetic generates frames without hardware. Frames are paced at FPS; an
// FPS of zero or less delivers them as fast as the callback returns.
type Synthetic struct {
	Width, Height int
	FPS           float64
	// Frames stops the stream after this many frames. Zero streams until Stop.
	Frames int
	// Fill paints frame seq into buf. Nil leaves a sequence stamp only.
	Fill func(seq int, buf []byte)

	mu     sync.Mutex
	cb     FrameCallback
	bufs   [][]byte
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSynthetic returns a synthetic camera of the given size.
func NewSynthetic(width, height int, fps float64, frames int) *Synthetic {
	return &Synthetic{Width: width, Height: height, FPS: fps, Frames: frames}
}

func (s *Synthetic) Open() (int, int, error) {
	return s.Width, s.Height, nil
}

func (s *Synthetic) SetBuffers(bufs [][]byte) error {
	if len(bufs) == 0 {
		return errors.New("no capture buffers")
	}
	s.mu.Lock()
	s.bufs = bufs
	s.mu.Unlock()
	return nil
}

func (s *Synthetic) RegisterFrameCallback(cb FrameCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *Synthetic) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("stream already running")
	}
	if len(s.bufs) == 0 || s.cb == nil {
		return errors.New("buffers and frame callback must be set before start")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.stream(ctx, s.bufs, s.cb, s.done)
	return nil
}

func (s *Synthetic) stream(ctx context.Context, bufs [][]byte, cb FrameCallback, done chan struct{}) {
	defer close(done)

	limit := rate.Inf
	if s.FPS > 0 {
		limit = rate.Limit(s.FPS)
	}
	limiter := rate.NewLimiter(limit, 1)

	for seq := 0; s.Frames == 0 || seq < s.Frames; seq++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		idx := seq % len(bufs)
		buf := bufs[idx]
		n := min(len(buf), s.Width*s.Height*2)
		if s.Fill != nil {
			s.Fill(seq, buf[:n])
		} else if n >= 4 {
			buf[0], buf[1], buf[2], buf[3] = byte(seq), byte(seq>>8), byte(seq>>16), byte(seq>>24)
		}
		cb(buf, idx, s.Width, s.Height, n)
	}
}

// Done is closed when the stream ends, either after Frames frames or on Stop.
func (s *Synthetic) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Synthetic) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *Synthetic) Close() error {
	return s.Stop()
}
