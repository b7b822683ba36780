package source

import (
	"image"
	"strings"

	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/xerror"
)

type Window struct {
	Title  string
	Bounds image.Rectangle
}

// listWindows asks the X server's window manager for every managed client
// window along with its on screen geometry.
var listWindows = func() ([]Window, error) {
	X, err := xgbutil.NewConn()
	if err != nil {
		return nil, xerror.Errorf("unable to connect to X server: %w", err)
	}
	defer X.Conn().Close()

	clients, err := ewmh.ClientListGet(X)
	if err != nil {
		return nil, xerror.Errorf("unable to list windows: %w", err)
	}

	windows := make([]Window, 0, len(clients))
	for _, win := range clients {
		name, err := ewmh.WmNameGet(X, win)
		if err != nil || len(name) == 0 {
			continue
		}
		geom, err := xwindow.New(X, win).DecorGeometry()
		if err != nil {
			log.Debug("Skipping window [%s]: %v", name, err)
			continue
		}
		windows = append(windows, Window{
			Title:  name,
			Bounds: image.Rect(geom.X(), geom.Y(), geom.X()+geom.Width(), geom.Y()+geom.Height()),
		})
	}
	return windows, nil
}

// FindWindow returns the first window whose title contains title, ignoring
// case.
func FindWindow(title string) (Window, error) {
	if len(strings.TrimSpace(title)) == 0 {
		return Window{}, configurationError(xerror.New("window title is undefined"))
	}

	windows, err := listWindows()
	if err != nil {
		return Window{}, configurationError(err)
	}

	want := strings.ToLower(title)
	for _, w := range windows {
		if strings.Contains(strings.ToLower(w.Title), want) {
			return w, nil
		}
	}
	return Window{}, configurationError(xerror.Errorf("no window found with title: %s", title))
}

// newWindowSource captures the area a window occupied when the source was
// opened. Moving the window afterwards is not followed.
func newWindowSource(title string, backend videobackend.Backend) (*regionSource, error) {
	w, err := FindWindow(title)
	if err != nil {
		return nil, err
	}
	log.Info("Capturing window [%s] at %v", w.Title, w.Bounds)
	return newRegionSource(w.Bounds, backend), nil
}
