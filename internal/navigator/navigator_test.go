package navigator

import (
	"math/rand"
	"testing"

	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/andresmejia3/kiosk/internal/ui/uitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShow_ReusesScreen(t *testing.T) {
	rec := uitest.NewRecorder()
	nav := New(rec)

	main := nav.Show(ui.ScreenSpec{View: ui.ViewMain})
	nav.Show(ui.ScreenSpec{View: ui.ViewSettings})
	again := nav.Show(ui.ScreenSpec{View: ui.ViewMain})

	assert.Equal(t, main, again)
	assert.Equal(t, 2, rec.Live())
	v, ok := nav.Active()
	require.True(t, ok)
	assert.Equal(t, ui.ViewMain, v)
}

func TestRebuild_ActiveBuildsFirst(t *testing.T) {
	rec := uitest.NewRecorder()
	nav := New(rec)

	old := nav.Rebuild(ui.ScreenSpec{View: ui.ViewFaceList})
	rec.Calls = nil

	repl := nav.Rebuild(ui.ScreenSpec{View: ui.ViewFaceList, Capacity: 3})
	assert.NotEqual(t, old, repl)
	assert.Equal(t, []string{"build face-list #2", "load #2", "delete #1"}, rec.Calls)
	assert.Empty(t, rec.Violations)
	assert.Equal(t, repl, nav.ActiveScreen())
}

func TestRebuild_InactiveDeletesFirst(t *testing.T) {
	rec := uitest.NewRecorder()
	nav := New(rec)

	nav.Rebuild(ui.ScreenSpec{View: ui.ViewFaceList})
	nav.Show(ui.ScreenSpec{View: ui.ViewCamera})
	rec.Calls = nil

	nav.Rebuild(ui.ScreenSpec{View: ui.ViewFaceList})
	assert.Equal(t, []string{"delete #1", "build face-list #3", "load #3"}, rec.Calls)
	assert.Empty(t, rec.Violations)
}

func TestClose_RefusesActive(t *testing.T) {
	rec := uitest.NewRecorder()
	nav := New(rec)

	nav.Rebuild(ui.ScreenSpec{View: ui.ViewFaceList})
	assert.ErrorIs(t, nav.Close(ui.ViewFaceList), ErrActiveScreen)
	assert.True(t, nav.Has(ui.ViewFaceList))

	nav.Show(ui.ScreenSpec{View: ui.ViewCamera})
	require.NoError(t, nav.Close(ui.ViewFaceList))
	assert.False(t, nav.Has(ui.ViewFaceList))
	assert.NoError(t, nav.Close(ui.ViewFaceList), "closing a missing view is a no-op")
	assert.Empty(t, rec.Violations)
}

// TestNeverDeletesActive drives random call sequences and checks after every
// call that no loaded screen was deleted and the navigator agrees with the
// toolkit about what is on display.
func TestNeverDeletesActive(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		rec := uitest.NewRecorder()
		nav := New(rec)

		for step := 0; step < 200; step++ {
			v := ui.Views[rng.Intn(len(ui.Views))]
			switch rng.Intn(3) {
			case 0:
				nav.Show(ui.ScreenSpec{View: v})
			case 1:
				nav.Rebuild(ui.ScreenSpec{View: v})
			case 2:
				_ = nav.Close(v)
			}
			require.Empty(t, rec.Violations, "seed %d step %d", seed, step)
			require.Equal(t, rec.Loaded(), nav.ActiveScreen(), "seed %d step %d", seed, step)
		}
	}
}
