// Package uitest provides a recording ui.Toolkit for tests.
package uitest

import (
	"fmt"
	"sync"

	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/ui"
)

// Recorder is an in-memory ui.Toolkit. It records every call and flags any
// delete of the loaded screen.
type Recorder struct {
	mu sync.Mutex

	next       ui.Screen
	live       map[ui.Screen]ui.ScreenSpec
	loaded     ui.Screen
	Calls      []string
	Violations []string
	Frames     int
	Overlays   []*Overlay
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{live: map[ui.Screen]ui.ScreenSpec{}}
}

func (r *Recorder) Build(spec ui.ScreenSpec) ui.Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.live[r.next] = spec
	r.Calls = append(r.Calls, fmt.Sprintf("build %s #%d", spec.View, r.next))
	return r.next
}

func (r *Recorder) Load(s ui.Screen) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[s]; !ok {
		r.Violations = append(r.Violations, fmt.Sprintf("load of dead screen #%d", s))
	}
	r.loaded = s
	r.Calls = append(r.Calls, fmt.Sprintf("load #%d", s))
}

func (r *Recorder) Delete(s ui.Screen) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == r.loaded {
		r.Violations = append(r.Violations, fmt.Sprintf("delete of active screen #%d", s))
	}
	if _, ok := r.live[s]; !ok {
		r.Violations = append(r.Violations, fmt.Sprintf("double delete of screen #%d", s))
	}
	delete(r.live, s)
	r.Calls = append(r.Calls, fmt.Sprintf("delete #%d", s))
}

func (r *Recorder) CreateOverlay(parent ui.Screen, item int) ui.OverlayVisuals {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := &Overlay{Parent: parent, Item: item, Countdown: -1}
	r.Overlays = append(r.Overlays, o)
	r.Calls = append(r.Calls, fmt.Sprintf("overlay %d on #%d", item, parent))
	return o
}

func (r *Recorder) UpdateFrame(f types.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames++
}

// Loaded is the screen currently shown.
func (r *Recorder) Loaded() ui.Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// LoadedView is the view of the screen currently shown.
func (r *Recorder) LoadedView() (ui.View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.live[r.loaded]
	return spec.View, ok
}

// Spec returns what s was built from.
func (r *Recorder) Spec(s ui.Screen) (ui.ScreenSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.live[s]
	return spec, ok
}

// Live is the number of screens not yet deleted.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// LiveOverlays counts overlays that have not been destroyed.
func (r *Recorder) LiveOverlays() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.Overlays {
		if !o.Destroyed {
			n++
		}
	}
	return n
}

// Overlay records what the overlay machine did to its visuals.
type Overlay struct {
	Parent    ui.Screen
	Item      int
	Countdown int
	Finished  bool
	Destroyed bool
	Destroys  int
}

func (o *Overlay) SetCountdown(n int) { o.Countdown = n }
func (o *Overlay) ShowFinish() { o.Finished = true }
func (o *Overlay) Destroy() {
	o.Destroyed = true
	o.Destroys++
}
