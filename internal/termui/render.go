// Package termui renders the kiosk screens to a terminal and turns typed
// commands into toolkit actions.
package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/ui"
	"github.com/andresmejia3/kiosk/internal/utils"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorCoffee = lipgloss.Color("#C08552")
	colorCream  = lipgloss.Color("#F3E9DC")
	colorMuted  = lipgloss.Color("#5E3023")
	colorOK     = lipgloss.Color("#2CD7C7")
)

// MenuLabels are the main grid buttons, in order.
var MenuLabels = [ui.MenuItems]string{
	"Espresso", "Americano", "Latte", "Cappuccino", "Mocha", "Flat White", "Macchiato", "Face ID",
}

type styles struct {
	title, item, muted, box, done lipgloss.Style
}

// Terminal is a ui.Toolkit that prints each loaded screen.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
	r  *lipgloss.Renderer
	st styles

	next    ui.Screen
	screens map[ui.Screen]ui.ScreenSpec
	loaded  ui.Screen

	// Frames presented on the camera view, and how often to report them.
	frames      int
	reportEvery int
}

// NewTerminal renders to w. reportEvery controls how often the camera view
// prints a frame counter; zero disables it.
func NewTerminal(w io.Writer, reportEvery int) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w: w,
		r: r,
		st: styles{
			title: r.NewStyle().Bold(true).Foreground(colorCoffee),
			item:  r.NewStyle().Foreground(colorCream),
			muted: r.NewStyle().Foreground(colorMuted),
			done:  r.NewStyle().Bold(true).Foreground(colorOK),
			box: r.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorCoffee).
				Padding(0, 1),
		},
		screens:     map[ui.Screen]ui.ScreenSpec{},
		reportEvery: reportEvery,
	}
}

func (t *Terminal) Build(spec ui.ScreenSpec) ui.Screen {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.screens[t.next] = spec
	return t.next
}

func (t *Terminal) Load(s ui.Screen) {
	t.mu.Lock()
	defer t.mu.Unlock()
	spec, ok := t.screens[s]
	if !ok {
		return
	}
	t.loaded = s
	t.frames = 0
	fmt.Fprintln(t.w, t.render(spec))
}

func (t *Terminal) Delete(s ui.Screen) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.screens, s)
}

func (t *Terminal) CreateOverlay(_ ui.Screen, item int) ui.OverlayVisuals {
	label := "Coffee"
	if item >= 0 && item < len(MenuLabels) {
		label = MenuLabels[item]
	}
	t.print(t.st.title.Render(fmt.Sprintf("☕ Making %s...", label)))
	return &overlay{t: t}
}

func (t *Terminal) UpdateFrame(f types.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.screens[t.loaded].View != ui.ViewCamera {
		return
	}
	t.frames++
	if t.reportEvery > 0 && t.frames%t.reportEvery == 0 {
		line := t.st.muted.Render(fmt.Sprintf("📷 %d frames (%dx%d)", t.frames, f.Width, f.Height))
		if sw := t.swatch(f); sw != "" {
			line += " " + sw
		}
		fmt.Fprintln(t.w, line)
	}
}

// swatch previews a frame as its mean color. Frames that are not a full
// RGB565 image get no swatch.
func (t *Terminal) swatch(f types.Frame) string {
	img, err := utils.UnpackRGB565(f.Data, f.Width, f.Height)
	if err != nil {
		return ""
	}
	var r, g, b, n int
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r += int(img.Pix[i])
		g += int(img.Pix[i+1])
		b += int(img.Pix[i+2])
		n++
	}
	if n == 0 {
		return ""
	}
	hex := fmt.Sprintf("#%02X%02X%02X", r/n, g/n, b/n)
	return t.r.NewStyle().Foreground(lipgloss.Color(hex)).Render("██") + " " + hex
}

// Frames is the number of frames shown since the camera view was loaded.
func (t *Terminal) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *Terminal) print(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, s)
}

func (t *Terminal) render(spec ui.ScreenSpec) string {
	var b strings.Builder
	switch spec.View {
	case ui.ViewMain:
		b.WriteString(t.st.title.Render("Coffee Kiosk") + "\n")
		for i, label := range MenuLabels {
			fmt.Fprintf(&b, "%s %s\n", t.st.muted.Render(fmt.Sprintf("[%d]", i+1)), t.st.item.Render(label))
		}
		b.WriteString(t.st.muted.Render("settings"))

	case ui.ViewSettings:
		b.WriteString(t.st.title.Render("Settings") + "\n")
		b.WriteString(t.st.muted.Render("back"))

	case ui.ViewCamera:
		b.WriteString(t.st.title.Render("Camera") + "\n")
		b.WriteString(t.st.muted.Render("faceid | faces | back"))

	case ui.ViewEnroll:
		b.WriteString(t.st.title.Render("New face") + "\n")
		b.WriteString(t.st.item.Render("Enter your name") + "\n")
		b.WriteString(t.st.muted.Render("save <name> | cancel"))

	case ui.ViewFaceList:
		fmt.Fprintf(&b, "%s\n", t.st.title.Render(fmt.Sprintf("Stored faces (%d/%d)", len(spec.Faces), spec.Capacity)))
		if len(spec.Faces) == 0 {
			b.WriteString(t.st.muted.Render("No faces stored") + "\n")
		}
		for _, row := range spec.Faces {
			fmt.Fprintf(&b, "%s %s\n", t.st.muted.Render(fmt.Sprintf("[%d]", row.Slot)), t.st.item.Render(row.Name))
		}
		b.WriteString(t.st.muted.Render("delete <slot> | back"))
	}
	return t.st.box.Render(b.String())
}

type overlay struct {
	t *Terminal
}

func (o *overlay) SetCountdown(n int) {
	o.t.print(o.t.st.item.Render(fmt.Sprintf("  %d", n)))
}

func (o *overlay) ShowFinish() {
	o.t.print(o.t.st.done.Render("✔ Enjoy your coffee!"))
}

func (o *overlay) Destroy() {}
