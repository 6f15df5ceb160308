package termui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andresmejia3/kiosk/internal/ui"
)

// ErrUnknownCommand is returned for input the current view does not accept.
var ErrUnknownCommand = errors.New("unknown command")

// Dispatch runs the action a typed line stands for on view. It must run on
// the UI context.
func Dispatch(a ui.Actions, view ui.View, line string) error {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	verb = strings.ToLower(verb)
	arg = strings.TrimSpace(arg)
	if verb == "" {
		return nil
	}

	switch view {
	case ui.ViewMain:
		if verb == "settings" {
			a.OpenSettings()
			return nil
		}
		if verb == "camera" {
			a.SelectItem(ui.CameraItem)
			return nil
		}
		n, err := strconv.Atoi(verb)
		if err != nil || n < 1 || n > ui.MenuItems {
			return fmt.Errorf("%w %q on %s", ErrUnknownCommand, line, view)
		}
		a.SelectItem(n - 1)
		return nil

	case ui.ViewSettings:
		if verb == "back" {
			a.Back()
			return nil
		}

	case ui.ViewCamera:
		switch verb {
		case "faceid":
			a.StartRecognition()
			return nil
		case "faces":
			a.OpenFaceList()
			return nil
		case "back":
			a.CloseCamera()
			return nil
		}

	case ui.ViewEnroll:
		switch verb {
		case "save":
			a.SaveEnrollment(arg)
			return nil
		case "cancel", "back":
			a.CancelEnrollment()
			return nil
		}

	case ui.ViewFaceList:
		switch verb {
		case "delete":
			slot, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("delete needs a slot number: %w", err)
			}
			a.RequestDelete(slot)
			return nil
		case "back":
			a.FaceListBack()
			return nil
		}
	}
	return fmt.Errorf("%w %q on %s", ErrUnknownCommand, line, view)
}
