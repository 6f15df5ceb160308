// Package controller is the kiosk session controller. It owns the screens,
// the camera session and the state machines, and implements the toolkit's
// Actions. Every exported method runs on the UI context.
package controller

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/andresmejia3/kiosk/internal/bufpool"
	"github.com/andresmejia3/kiosk/internal/camera"
	"github.com/andresmejia3/kiosk/internal/deferred"
	"github.com/andresmejia3/kiosk/internal/metrics"
	"github.com/andresmejia3/kiosk/internal/navigator"
	"github.com/andresmejia3/kiosk/internal/overlay"
	"github.com/andresmejia3/kiosk/internal/recognition"
	"github.com/andresmejia3/kiosk/internal/store"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/rs/zerolog/log"
)

// Config groups the tunables of every component.
type Config struct {
	Camera      camera.Config
	Recognition recognition.Config
	Overlay     overlay.Config
	Delays      deferred.Delays
}

// DefaultConfig matches the device.
var DefaultConfig = Config{
	Camera:      camera.DefaultConfig,
	Recognition: recognition.DefaultConfig,
	Overlay:     overlay.DefaultConfig,
	Delays:      deferred.DefaultDelays,
}

// Deps are the external collaborators.
type Deps struct {
	Loop     *ui.Loop
	Toolkit  ui.Toolkit
	Faces    *store.FaceStore
	Driver   camera.Driver
	Alloc    bufpool.Allocator
	Matcher  recognition.Matcher
	Detector recognition.DetectorFactory
	Metrics  *metrics.Metrics
	// Out receives COFFEE_FOR lines.
	Out io.Writer
}

var (
	_ ui.Actions               = (*Controller)(nil)
	_ deferred.Handler         = (*Controller)(nil)
	_ recognition.EnrollPrompt = (*Controller)(nil)
)

// Controller drives the kiosk.
type Controller struct {
	ctx  context.Context
	deps Deps

	nav       *navigator.Navigator
	overlay   *overlay.Machine
	deferred  *deferred.Machine
	scheduler *recognition.Scheduler
	camera    *camera.Session

	// Feature of the unknown face being enrolled.
	enrollFeature types.Feature
}

// New loads the faces, builds the components and shows the main screen.
// ctx bounds persistence and the camera stream.
func New(ctx context.Context, cfg Config, deps Deps) *Controller {
	if deps.Matcher == nil {
		deps.Matcher = recognition.CosineMatcher{Threshold: recognition.DefaultThreshold}
	}
	if deps.Alloc == nil {
		deps.Alloc = bufpool.NewHeap(0)
	}

	c := &Controller{ctx: ctx, deps: deps}
	c.nav = navigator.New(deps.Toolkit)
	c.deferred = deferred.New(c, cfg.Delays, deps.Metrics)
	c.overlay = overlay.New(deps.Loop, deps.Toolkit, cfg.Overlay, c.showMain)
	c.scheduler = recognition.New(cfg.Recognition, recognition.Deps{
		Loop:     deps.Loop,
		Toolkit:  deps.Toolkit,
		Gallery:  deps.Faces,
		Matcher:  deps.Matcher,
		Deferred: c.deferred,
		Prompt:   c,
		Factory:  deps.Detector,
		Metrics:  deps.Metrics,
		Out:      deps.Out,
	}, nil)
	c.camera = camera.NewSession(cfg.Camera, deps.Driver, deps.Alloc, c.scheduler.OnFrame, deps.Metrics)

	if err := deps.Faces.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to load faces, starting empty")
	}
	deps.Metrics.RecordFacesStored(deps.Faces.Count())

	deps.Loop.OnTick(func(now time.Time) { c.deferred.Drain(now) })

	lock := deps.Loop.Lock()
	lock.Lock()
	c.show(ui.ViewMain)
	lock.Unlock()
	return c
}

// Navigator exposes the screen set.
func (c *Controller) Navigator() *navigator.Navigator { return c.nav }

// Overlay exposes the making overlay.
func (c *Controller) Overlay() *overlay.Machine { return c.overlay }

// Deferred exposes the deferred action queue.
func (c *Controller) Deferred() *deferred.Machine { return c.deferred }

// Camera exposes the capture session.
func (c *Controller) Camera() *camera.Session { return c.camera }

// Recognition exposes the frame scheduler.
func (c *Controller) Recognition() *recognition.Scheduler { return c.scheduler }

// --- Main menu & settings ---

// SelectItem handles a main grid button. The last item opens the camera.
func (c *Controller) SelectItem(item int) {
	log.Info().Int("item", item+1).Msg("Button clicked")
	switch {
	case item == ui.CameraItem:
		c.ShowCamera()
	case item >= 0 && item < ui.CameraItem:
		c.ShowOverlay(item)
	default:
		log.Warn().Int("item", item).Msg("No such menu item")
	}
}

// ShowOverlay starts the making overlay for item over the current screen.
func (c *Controller) ShowOverlay(item int) {
	c.overlay.Start(item, c.nav.ActiveScreen())
	c.deps.Metrics.RecordOverlaySession()
}

func (c *Controller) OpenSettings() {
	c.overlay.Cancel()
	c.show(ui.ViewSettings)
}

// Back leaves the settings screen.
func (c *Controller) Back() {
	c.showMain()
}

func (c *Controller) showMain() {
	c.overlay.Cancel()
	c.show(ui.ViewMain)
}

// --- Camera ---

// ShowCamera brings up the camera view, initializing the camera on first use.
// When the camera cannot be initialized the current screen stays.
func (c *Controller) ShowCamera() {
	c.overlay.Cancel()

	if !c.camera.Initialized() {
		log.Info().Msg("Initializing camera hardware...")
		if err := c.camera.Init(); err != nil {
			log.Error().Err(err).Msg("Camera init failed")
			return
		}
	}

	c.show(ui.ViewCamera)

	if err := c.camera.Start(c.ctx); err != nil {
		log.Error().Err(err).Msg("Camera stream not started")
	}
}

// StartRecognition is the Face ID button.
func (c *Controller) StartRecognition() {
	if err := c.scheduler.Enable(); err != nil {
		log.Error().Err(err).Msg("Cannot start face recognition")
	}
}

// OpenFaceList is the Face List button.
func (c *Controller) OpenFaceList() {
	c.scheduler.Disable()
	c.showFaceList()
}

// CloseCamera is the camera view's Back button.
func (c *Controller) CloseCamera() {
	c.scheduler.Disable()
	c.closeCamera()
	c.showMain()
}

// closeCamera stops the stream. The camera screen and the buffers stay.
func (c *Controller) closeCamera() {
	log.Info().Msg("Closing camera screen")
	c.camera.Stop()
	c.scheduler.Disable()
}

// --- Enrollment ---

// PromptEnrollment shows the enrollment screen for an unknown face. The
// camera goroutine calls it with the UI lock held.
func (c *Controller) PromptEnrollment(feature types.Feature) {
	c.enrollFeature = feature
	c.rebuild(ui.ScreenSpec{View: ui.ViewEnroll})
}

// SaveEnrollment stores the face under name and returns to the main screen.
// An empty name is ignored.
func (c *Controller) SaveEnrollment(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		log.Debug().Msg("Empty name, not saving")
		return
	}

	log.Info().Str("name", name).Msg("Saving face")
	if _, err := c.deps.Faces.EnrollWithFeature(c.ctx, name, c.enrollFeature); err != nil {
		c.deps.Metrics.RecordPersistFailure()
	}
	c.deps.Metrics.RecordFacesStored(c.deps.Faces.Count())

	c.endEnrollment()
	c.closeCamera()
	c.showMain()
	_ = c.nav.Close(ui.ViewEnroll)
}

// CancelEnrollment discards the unknown face and returns to the camera.
func (c *Controller) CancelEnrollment() {
	c.endEnrollment()
	c.ShowCamera()
	_ = c.nav.Close(ui.ViewEnroll)
}

func (c *Controller) endEnrollment() {
	c.enrollFeature = types.Feature{}
	c.scheduler.Flags().Clear()
}

// --- Face list ---

// RequestDelete is a face list row's delete button. The face list is rebuilt
// on a later tick, never from inside its own event.
func (c *Controller) RequestDelete(slot int) {
	log.Info().Int("slot", slot).Msg("Delete button clicked")
	c.deferred.Schedule(c.deps.Loop.Now(), deferred.Action{Kind: deferred.DeleteFace, Slot: slot})
}

// FaceListBack is the face list's back button.
func (c *Controller) FaceListBack() {
	c.deferred.Schedule(c.deps.Loop.Now(), deferred.Action{Kind: deferred.NavigateBack})
}

func (c *Controller) showFaceList() {
	entries := c.deps.Faces.Entries()
	rows := make([]ui.FaceRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ui.FaceRow{Slot: e.Slot, Name: e.Name})
	}
	c.rebuild(ui.ScreenSpec{View: ui.ViewFaceList, Faces: rows, Capacity: c.deps.Faces.Capacity()})
	log.Info().Int("faces", len(rows)).Msg("Face list screen displayed")
}

// --- Deferred actions ---

// ApplyRecognized stops the camera and starts making coffee for the
// recognized face.
func (c *Controller) ApplyRecognized(slot int) {
	log.Info().Int("slot", slot).Msg("Processing recognized face")
	c.closeCamera()
	c.ShowOverlay(0)
}

// ApplyDelete deletes the face and rebuilds the face list if it is still shown.
func (c *Controller) ApplyDelete(slot int) {
	if err := c.deps.Faces.Delete(c.ctx, slot); err != nil {
		if !errors.Is(err, store.ErrInvalidIndex) {
			c.deps.Metrics.RecordPersistFailure()
		}
	}
	c.deps.Metrics.RecordFacesStored(c.deps.Faces.Count())
	// A back press drained first already left the face list.
	if v, ok := c.nav.Active(); !ok || v != ui.ViewFaceList {
		return
	}
	c.showFaceList()
}

// ApplyBack returns to the camera and only then releases the face list.
func (c *Controller) ApplyBack() {
	c.ShowCamera()
	if err := c.nav.Close(ui.ViewFaceList); err != nil {
		log.Warn().Err(err).Msg("Face list kept")
	}
}

// --- Teardown ---

// Close cancels everything in flight, leaves the main screen on display,
// frees the camera buffers and closes the driver.
func (c *Controller) Close() error {
	c.overlay.Cancel()
	c.closeCamera()
	c.scheduler.Flags().Clear()
	c.deferred.Reset()

	c.show(ui.ViewMain)
	for _, v := range []ui.View{ui.ViewCamera, ui.ViewFaceList, ui.ViewEnroll, ui.ViewSettings} {
		_ = c.nav.Close(v)
	}

	err := c.camera.Close()
	if derr := c.scheduler.Close(); err == nil {
		err = derr
	}
	return err
}

func (c *Controller) show(v ui.View) {
	c.nav.Show(ui.ScreenSpec{View: v})
	c.deps.Metrics.RecordViewLoad(v.String())
}

func (c *Controller) rebuild(spec ui.ScreenSpec) {
	c.nav.Rebuild(spec)
	c.deps.Metrics.RecordViewLoad(spec.View.String())
}
