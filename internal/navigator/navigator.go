// Package navigator owns the live screen of every view.
//
// The screen that is loaded (active) is never deleted. Rebuilding the active
// view builds and loads the replacement before the old screen is deleted.
package navigator

import (
	"errors"

	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/rs/zerolog/log"
)

// ErrActiveScreen is returned by Close when the view is still on display.
var ErrActiveScreen = errors.New("screen is active")

// Navigator must only be used from the UI context.
type Navigator struct {
	tk      ui.Toolkit
	screens map[ui.View]ui.Screen
	active  ui.Screen
}

// New returns a Navigator with no screens.
func New(tk ui.Toolkit) *Navigator {
	return &Navigator{tk: tk, screens: make(map[ui.View]ui.Screen)}
}

// Show loads the view's screen, building it first if it has none. The
// previously active screen stays alive.
func (n *Navigator) Show(spec ui.ScreenSpec) ui.Screen {
	s, ok := n.screens[spec.View]
	if !ok {
		s = n.tk.Build(spec)
		n.screens[spec.View] = s
	}
	n.load(s, spec.View)
	return s
}

// Rebuild replaces the view's screen with a fresh one and loads it.
func (n *Navigator) Rebuild(spec ui.ScreenSpec) ui.Screen {
	old, had := n.screens[spec.View]

	if had && old != n.active {
		n.tk.Delete(old)
		had = false
	}

	s := n.tk.Build(spec)
	n.screens[spec.View] = s
	n.load(s, spec.View)

	// old was active until the load above.
	if had {
		n.tk.Delete(old)
	}
	return s
}

// Close deletes the view's screen. Closing the active view is refused.
func (n *Navigator) Close(v ui.View) error {
	s, ok := n.screens[v]
	if !ok {
		return nil
	}
	if s == n.active {
		log.Warn().Stringer("view", v).Msg("Refusing to delete the active screen, switch views first")
		return ErrActiveScreen
	}
	n.tk.Delete(s)
	delete(n.screens, v)
	log.Debug().Stringer("view", v).Msg("Screen deleted")
	return nil
}

// Active returns the view on display. ok is false before the first Show.
func (n *Navigator) Active() (v ui.View, ok bool) {
	for view, s := range n.screens {
		if s == n.active {
			return view, true
		}
	}
	return 0, false
}

// ActiveScreen is the loaded screen handle, zero before the first Show.
func (n *Navigator) ActiveScreen() ui.Screen {
	return n.active
}

// Has reports whether the view has a live screen.
func (n *Navigator) Has(v ui.View) bool {
	_, ok := n.screens[v]
	return ok
}

func (n *Navigator) load(s ui.Screen, v ui.View) {
	if s == n.active {
		return
	}
	n.tk.Load(s)
	n.active = s
	log.Debug().Stringer("view", v).Msg("Screen loaded")
}
