package ui

import "github.com/andresmejia3/kiosk/internal/types"

// View names a logical screen. Each view has at most one live screen.
type View int

const (
	ViewMain View = iota
	ViewSettings
	ViewCamera
	ViewEnroll
	ViewFaceList
)

// Views lists every view.
var Views = []View{ViewMain, ViewSettings, ViewCamera, ViewEnroll, ViewFaceList}

func (v View) String() string {
	switch v {
	case ViewMain:
		return "main"
	case ViewSettings:
		return "settings"
	case ViewCamera:
		return "camera"
	case ViewEnroll:
		return "enroll"
	case ViewFaceList:
		return "face-list"
	default:
		return "unknown"
	}
}

// Screen is a toolkit screen handle. Zero means no screen.
type Screen uint64

// MenuItems is the number of buttons in the main grid. The last one opens the camera.
const MenuItems = 8

// CameraItem is the grid button that opens the camera view.
const CameraItem = MenuItems - 1

// FaceRow is one line of the face list.
type FaceRow struct {
	Slot int
	Name string
}

// ScreenSpec describes the screen to build for a view.
type ScreenSpec struct {
	View View

	// Face list only.
	Faces    []FaceRow
	Capacity int
}

// OverlayVisuals are the transient elements of the making overlay.
type OverlayVisuals interface {
	// SetCountdown updates the countdown label.
	SetCountdown(n int)
	// ShowFinish hides the animation and countdown and shows the finished image.
	ShowFinish()
	// Destroy releases every element. Called exactly once.
	Destroy()
}

// Toolkit is the rendering side. Every method is called from the UI context,
// or from the camera goroutine while it holds the UI lock.
type Toolkit interface {
	Build(spec ScreenSpec) Screen
	Load(s Screen)
	Delete(s Screen)
	CreateOverlay(parent Screen, item int) OverlayVisuals
	// UpdateFrame presents a camera frame on the camera view. f.Data is only
	// valid for the duration of the call.
	UpdateFrame(f types.Frame)
}

// Actions are the events a toolkit raises on user input. Handlers run on the
// UI context.
type Actions interface {
	SelectItem(item int)
	OpenSettings()
	Back()
	StartRecognition()
	OpenFaceList()
	CloseCamera()
	SaveEnrollment(name string)
	CancelEnrollment()
	RequestDelete(slot int)
	FaceListBack()
}
