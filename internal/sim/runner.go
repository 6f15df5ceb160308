package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/kiosk/internal/controller"
	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/rs/zerolog/log"
)

// ErrCameraUnavailable is returned when the camera view does not open.
var ErrCameraUnavailable = errors.New("camera did not open")

// Outcome of a visit.
type Outcome int

const (
	// Served visitors were recognized and got their coffee.
	Served Outcome = iota
	// Enrolled visitors were unknown and saved their name.
	Enrolled
	// TurnedAway visitors got nothing before the timeout, typically because
	// the face store was full.
	TurnedAway
)

func (o Outcome) String() string {
	switch o {
	case Served:
		return "served"
	case Enrolled:
		return "enrolled"
	case TurnedAway:
		return "turned away"
	default:
		return "unknown"
	}
}

// Runner plays visitors against a running kiosk. Every controller call is
// posted to the UI loop, which must be running.
type Runner struct {
	Loop  *ui.Loop
	Ctrl  *controller.Controller
	Scene *Scene

	// Timeout bounds a single visit.
	Timeout time.Duration
	// Poll is how often the kiosk state is sampled.
	Poll time.Duration
}

type snapshot struct {
	view    ui.View
	overlay bool
}

// Visit walks name up to the kiosk: open the camera, start recognition, and
// either enroll the name or wait for the coffee to finish.
func (r *Runner) Visit(ctx context.Context, name string) (Outcome, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := r.Poll
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}

	r.Scene.Enter(name)
	defer r.Scene.Leave()

	opened := false
	if err := r.do(ctx, func() {
		r.Ctrl.SelectItem(ui.CameraItem)
		if v, _ := r.Ctrl.Navigator().Active(); v == ui.ViewCamera {
			opened = true
			r.Ctrl.StartRecognition()
		}
	}); err != nil {
		return TurnedAway, err
	}
	if !opened {
		return TurnedAway, ErrCameraUnavailable
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TurnedAway, ctx.Err()
		case <-deadline.C:
			log.Warn().Str("visitor", name).Dur("timeout", timeout).Msg("Visitor gave up")
			return TurnedAway, r.do(ctx, func() {
				if v, _ := r.Ctrl.Navigator().Active(); v == ui.ViewCamera {
					r.Ctrl.CloseCamera()
				}
			})
		case <-ticker.C:
		}

		s, err := r.snapshot(ctx)
		if err != nil {
			return TurnedAway, err
		}
		switch {
		case s.view == ui.ViewEnroll:
			return Enrolled, r.do(ctx, func() { r.Ctrl.SaveEnrollment(name) })
		case s.view == ui.ViewMain && !s.overlay:
			// Back on main without enrolling: the coffee is done.
			return Served, nil
		}
	}
}

func (r *Runner) snapshot(ctx context.Context) (snapshot, error) {
	var s snapshot
	err := r.do(ctx, func() {
		s.view, _ = r.Ctrl.Navigator().Active()
		s.overlay = r.Ctrl.Overlay().Active()
	})
	return s, err
}

// do runs fn on the UI loop and waits for it.
func (r *Runner) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	r.Loop.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ui loop did not run: %w", ctx.Err())
	}
}
