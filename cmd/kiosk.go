package cmd

import (
	"context"
	"io"

	"github.com/andresmejia3/kiosk/internal/bufpool"
	"github.com/andresmejia3/kiosk/internal/camera"
	"github.com/andresmejia3/kiosk/internal/config"
	"github.com/andresmejia3/kiosk/internal/controller"
	"github.com/andresmejia3/kiosk/internal/deferred"
	"github.com/andresmejia3/kiosk/internal/metrics"
	"github.com/andresmejia3/kiosk/internal/overlay"
	"github.com/andresmejia3/kiosk/internal/recognition"
	"github.com/andresmejia3/kiosk/internal/sim"
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/andresmejia3/kiosk/internal/worker"
)

// kiosk is a fully wired controller and the pieces the commands drive.
type kiosk struct {
	Loop    *ui.Loop
	Ctrl    *controller.Controller
	Scene   *sim.Scene
	Metrics *metrics.Metrics
}

func controllerConfig(cfg *config.Config) controller.Config {
	return controller.Config{
		Camera: camera.Config{
			MaxBuffers:    cfg.Camera.MaxBuffers,
			BitsPerPixel:  cfg.Camera.BitsPerPixel,
			DefaultWidth:  cfg.Camera.Width,
			DefaultHeight: cfg.Camera.Height,
			Align:         cfg.Camera.Align,
			StartTimeout:  cfg.Camera.StartTimeout,
		},
		Recognition: recognition.Config{
			SampleEvery:    cfg.Recognition.SampleEvery,
			HandoffTimeout: cfg.Recognition.HandoffTimeout,
			DisplayTimeout: cfg.Recognition.DisplayLockTimeout,
		},
		Overlay: overlay.Config{
			Tick:        cfg.Overlay.Tick,
			GifTicks:    cfg.Overlay.GifTicks,
			FinishTicks: cfg.Overlay.FinishTicks,
		},
		Delays: deferred.Delays{
			Recognized: cfg.Deferred.RecognizedDelay,
			Delete:     cfg.Deferred.DeleteDelay,
			Back:       cfg.Deferred.BackDelay,
		},
	}
}

func newDriver(cfg config.CameraConfig, scene *sim.Scene) camera.Driver {
	if cfg.Driver == "ffmpeg" {
		return camera.NewFFmpeg(cfg.Input, cfg.FPS)
	}
	s := camera.NewSynthetic(cfg.Width, cfg.Height, cfg.FPS, 0)
	s.Fill = scene.Fill
	return s
}

func detectorFactory(cfg config.RecognitionConfig, scene *sim.Scene) recognition.DetectorFactory {
	if cfg.Detector == "python" {
		return func() (recognition.Detector, error) {
			w, err := worker.NewPythonWorker(0, cfg.WorkerCmd)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
	}
	return func() (recognition.Detector, error) {
		return &sim.Detector{Scene: scene}, nil
	}
}

// newKiosk wires a controller over faces. out receives the COFFEE_FOR lines.
func newKiosk(ctx context.Context, cfg *config.Config, faces *store.FaceStore, tk ui.Toolkit, out io.Writer) *kiosk {
	k := &kiosk{
		Loop:    ui.NewLoop(nil),
		Scene:   &sim.Scene{},
		Metrics: metrics.New(),
	}
	k.Ctrl = controller.New(ctx, controllerConfig(cfg), controller.Deps{
		Loop:     k.Loop,
		Toolkit:  tk,
		Faces:    faces,
		Driver:   newDriver(cfg.Camera, k.Scene),
		Alloc:    bufpool.NewHeap(cfg.Camera.HeapBudget),
		Matcher:  recognition.NewMatcher(cfg.Recognition.Matcher, cfg.Recognition.MatchThreshold),
		Detector: detectorFactory(cfg.Recognition, k.Scene),
		Metrics:  k.Metrics,
		Out:      out,
	})
	return k
}

// shutdown closes the controller on the UI context. The loop must be stopped.
func (k *kiosk) shutdown() error {
	lock := k.Loop.Lock()
	lock.Lock()
	defer lock.Unlock()
	return k.Ctrl.Close()
}
