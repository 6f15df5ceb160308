// Package recognition runs face recognition inside the camera frame callback
// and hands results over to the UI context.
package recognition

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/kiosk/internal/deferred"
	"github.com/andresmejia3/kiosk/internal/metrics"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/rs/zerolog/log"
)

// Detector finds faces in a frame. An empty result means no face.
type Detector interface {
	Detect(f types.Frame) ([]types.Candidate, error)
}

// DetectorFactory creates the detector the first time recognition is enabled.
type DetectorFactory func() (Detector, error)

// EnrollPrompt shows the enrollment screen. It is called with the UI lock held.
type EnrollPrompt interface {
	PromptEnrollment(feature types.Feature)
}

// Config tunes the scheduler.
type Config struct {
	// SampleEvery runs the detector on one frame in SampleEvery.
	SampleEvery int
	// HandoffTimeout bounds the wait for the UI lock when handing over a result.
	HandoffTimeout time.Duration
	// DisplayTimeout bounds the wait for the UI lock when presenting a frame.
	DisplayTimeout time.Duration
}

// DefaultConfig samples every 10th frame.
var DefaultConfig = Config{
	SampleEvery:    10,
	HandoffTimeout: 250 * time.Millisecond,
	DisplayTimeout: 100 * time.Millisecond,
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Loop     *ui.Loop
	Toolkit  ui.Toolkit
	Gallery  Gallery
	Matcher  Matcher
	Deferred *deferred.Machine
	Prompt   EnrollPrompt
	Factory  DetectorFactory
	Metrics  *metrics.Metrics
	// Out receives the COFFEE_FOR line for every recognized face. Defaults to stdout.
	Out io.Writer
}

type detectorRef struct{ d Detector }

// Scheduler is the frame callback. OnFrame runs on the camera goroutine;
// everything else runs on the UI context.
type Scheduler struct {
	cfg  Config
	deps Deps

	flags    *Flags
	detector atomic.Pointer[detectorRef]
	initMu   sync.Mutex

	// Owned by the camera goroutine.
	frames int
}

// New returns a scheduler with recognition disabled.
func New(cfg Config, deps Deps, flags *Flags) *Scheduler {
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = DefaultConfig.SampleEvery
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if flags == nil {
		flags = &Flags{}
	}
	return &Scheduler{cfg: cfg, deps: deps, flags: flags}
}

// Flags returns the shared coordination flags.
func (s *Scheduler) Flags() *Flags { return s.flags }

// Enable turns recognition on, creating the detector on first use.
func (s *Scheduler) Enable() error {
	if s.detector.Load() == nil {
		s.initMu.Lock()
		defer s.initMu.Unlock()
		if s.detector.Load() == nil {
			if s.deps.Factory == nil {
				return fmt.Errorf("no face detector configured")
			}
			d, err := s.deps.Factory()
			if err != nil {
				return fmt.Errorf("create face detector: %w", err)
			}
			s.detector.Store(&detectorRef{d: d})
			log.Info().Msg("Face detector ready")
		}
	}
	s.flags.SetActive(true)
	log.Info().Msg("Face recognition active")
	return nil
}

// Disable stops sampling. The enrollment latch is left alone.
func (s *Scheduler) Disable() {
	s.flags.SetActive(false)
}

// Close releases the detector if it holds resources.
func (s *Scheduler) Close() error {
	ref := s.detector.Swap(nil)
	if ref == nil {
		return nil
	}
	if c, ok := ref.d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OnFrame handles one captured frame. f.Data is borrowed from the capture
// buffer pool and is not retained. It never blocks for long on the UI: when
// the lock is busy the frame is dropped.
func (s *Scheduler) OnFrame(f types.Frame) {
	if det := s.sample(); det != nil {
		if s.recognize(det, f) {
			return
		}
	}
	s.display(f)
}

// sample returns the detector when this frame must be examined.
func (s *Scheduler) sample() Detector {
	if !s.flags.Active() || s.flags.Waiting() {
		return nil
	}
	ref := s.detector.Load()
	if ref == nil {
		return nil
	}
	n := s.frames
	s.frames++
	if n%s.cfg.SampleEvery != 0 {
		return nil
	}
	return ref.d
}

// recognize reports whether the frame was consumed by a handoff.
func (s *Scheduler) recognize(det Detector, f types.Frame) bool {
	s.deps.Metrics.RecordDetectorCall()
	cands, err := det.Detect(f)
	if err != nil {
		log.Debug().Err(err).Msg("Face detection failed, skipping frame")
		return false
	}
	if len(cands) == 0 {
		s.deps.Metrics.RecordRecognition("none")
		return false
	}
	log.Debug().Int("faces", len(cands)).Msg("Face detected")

	slot := s.deps.Matcher.Match(cands, s.deps.Gallery)
	switch {
	case slot >= 0:
		s.deps.Metrics.RecordRecognition("known")
		s.handoffKnown(slot)
		return true

	case slot == types.MatchUnknown:
		s.deps.Metrics.RecordRecognition("unknown")
		if s.deps.Gallery.IsFull() {
			log.Warn().Msg("Face storage full, cannot add new face")
			return false
		}
		s.handoffUnknown(featureOf(cands))
		return true

	default:
		s.deps.Metrics.RecordRecognition("none")
		return false
	}
}

func (s *Scheduler) handoffKnown(slot int) {
	if s.deps.Deferred.Pending(deferred.RecognizedFace) {
		s.flags.SetActive(false)
		s.deps.Metrics.RecordFrame("handoff_skipped")
		return
	}
	lock := s.deps.Loop.Lock()
	if !lock.TryLock(s.cfg.HandoffTimeout) {
		s.flags.SetActive(false)
		log.Debug().Msg("UI busy, recognized face dropped")
		s.deps.Metrics.RecordFrame("dropped")
		return
	}
	defer lock.Unlock()

	// The user may have left the camera view while the detector ran.
	if !s.flags.Active() {
		log.Debug().Int("slot", slot).Msg("Recognition stopped, result discarded")
		s.deps.Metrics.RecordFrame("stale")
		return
	}
	// Stop sampling before the UI reacts so the same face does not trigger twice.
	s.flags.SetActive(false)

	rec, _ := s.deps.Gallery.Get(slot)
	log.Info().Int("slot", slot).Str("name", rec.Name).Msg("Welcome back")
	fmt.Fprintf(s.deps.Out, "COFFEE_FOR: %s\n", rec.Name)

	if s.deps.Deferred.Schedule(s.deps.Loop.Now(), deferred.Action{Kind: deferred.RecognizedFace, Slot: slot}) {
		log.Info().Int("slot", slot).Msg("Face action scheduled")
	}
	s.deps.Metrics.RecordFrame("handoff")
}

func (s *Scheduler) handoffUnknown(feature types.Feature) {
	log.Info().Msg("Unknown face detected")
	lock := s.deps.Loop.Lock()
	if !lock.TryLock(s.cfg.HandoffTimeout) {
		s.deps.Metrics.RecordFrame("dropped")
		return
	}
	defer lock.Unlock()

	if !s.flags.Active() {
		log.Debug().Msg("Recognition stopped, unknown face discarded")
		s.deps.Metrics.RecordFrame("stale")
		return
	}
	s.flags.SetWaiting(true)
	s.deps.Prompt.PromptEnrollment(feature)
	s.deps.Metrics.RecordFrame("handoff")
}

func (s *Scheduler) display(f types.Frame) {
	lock := s.deps.Loop.Lock()
	if !lock.TryLock(s.cfg.DisplayTimeout) {
		s.deps.Metrics.RecordFrame("dropped")
		return
	}
	s.deps.Toolkit.UpdateFrame(f)
	lock.Unlock()
	s.deps.Metrics.RecordFrame("displayed")
}
