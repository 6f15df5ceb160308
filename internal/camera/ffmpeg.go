package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const megabyte = 1024 * 1024

// FFmpeg plays a video file as a camera. ffmpeg emits MJPEG; each JPEG is
// decoded, scaled to the capture size and packed as RGB565 into the next
// capture buffer.
type FFmpeg struct {
	Input string
	// FPS paces delivery. Zero probes the file; negative delivers unpaced.
	FPS float64
	// Used when the file cannot be probed.
	DefaultWidth, DefaultHeight int

	mu     sync.Mutex
	width  int
	height int
	cb     FrameCallback
	bufs   [][]byte
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFFmpeg returns a driver reading input.
func NewFFmpeg(input string, fps float64) *FFmpeg {
	return &FFmpeg{Input: input, FPS: fps, DefaultWidth: DefaultConfig.DefaultWidth, DefaultHeight: DefaultConfig.DefaultHeight}
}

func (f *FFmpeg) Open() (int, int, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return 0, 0, fmt.Errorf("ffmpeg not found: %w", err)
	}

	w, h, err := utils.GetVideoSize(f.Input)
	if err != nil || w <= 0 || h <= 0 {
		log.Warn().Err(err).Str("input", f.Input).Msg("Cannot probe video size, using default resolution")
		w, h = f.DefaultWidth, f.DefaultHeight
	}
	if f.FPS == 0 {
		if fps, err := utils.GetVideoFPS(f.Input); err == nil {
			f.FPS = fps
		}
	}

	log.Info().Str("input", f.Input).Int("frames", utils.GetTotalFrames(f.Input)).Float64("fps", f.FPS).Msg("Video camera opened")

	f.mu.Lock()
	f.width, f.height = w, h
	f.mu.Unlock()
	return w, h, nil
}

func (f *FFmpeg) SetBuffers(bufs [][]byte) error {
	if len(bufs) == 0 {
		return errors.New("no capture buffers")
	}
	f.mu.Lock()
	f.bufs = bufs
	f.mu.Unlock()
	return nil
}

func (f *FFmpeg) RegisterFrameCallback(cb FrameCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FFmpeg) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd != nil {
		return errors.New("stream already running")
	}
	if len(f.bufs) == 0 || f.cb == nil {
		return errors.New("buffers and frame callback must be set before start")
	}

	cmd := utils.NewFFmpegCmd(f.Input)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cmd, f.stderr, f.cancel = cmd, stderr, cancel
	f.done = make(chan struct{})
	go f.stream(ctx, out, f.bufs, f.cb, f.done)
	return nil
}

func (f *FFmpeg) stream(ctx context.Context, out io.Reader, bufs [][]byte, cb FrameCallback, done chan struct{}) {
	defer close(done)

	limit := rate.Inf
	if f.FPS > 0 {
		limit = rate.Limit(f.FPS)
	}
	limiter := rate.NewLimiter(limit, 1)

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	seq := 0
	for scanner.Scan() {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		img, err := utils.DecodeImage(scanner.Bytes())
		if err != nil {
			log.Debug().Err(err).Int("frame", seq).Msg("Skipping undecodable frame")
			continue
		}
		idx := seq % len(bufs)
		n, err := utils.PackRGB565(bufs[idx], img, f.width, f.height)
		if err != nil {
			log.Warn().Err(err).Msg("Frame does not fit capture buffer")
			continue
		}
		cb(bufs[idx], idx, f.width, f.height, n)
		seq++
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("Frame scanner failed")
	}
	log.Debug().Int("frames", seq).Msg("Video input finished")
}

// Done is closed when the video ends or the stream is stopped.
func (f *FFmpeg) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *FFmpeg) Stop() error {
	f.mu.Lock()
	cmd, cancel, done, stderr := f.cmd, f.cancel, f.done, f.stderr
	f.cmd, f.cancel = nil, nil
	f.mu.Unlock()

	if cmd == nil {
		return nil
	}
	cancel()
	if cmd.ProcessState == nil {
		_ = cmd.Process.Kill()
	}
	<-done
	if err := cmd.Wait(); err != nil && stderr.Len() > 0 {
		log.Debug().Str("ffmpeg", stderr.String()).Msg("FFmpeg exited")
	}
	return nil
}

func (f *FFmpeg) Close() error {
	return f.Stop()
}
