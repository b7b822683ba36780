// Package display shows processed frames in a desktop window.
package display

import (
	"context"
	"image"
	"runtime"
	"time"

	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type Frames interface {
	Read(timeout time.Duration) (process.Result, bool)
}

type Settings struct {
	Title   string
	Refresh time.Duration
	// Size every shown frame is stretched to, frames keep their own size
	// when it is unset.
	Size    videoframe.Dimensions
}

const DefaultRefresh = 15 * time.Millisecond

const (
	keyEscape = 27
	keyQ      = 'q'
)

type window interface {
	Show(process.Result) error
	// WaitKey pumps the window's event loop and returns the pressed key, or
	// -1 when there was none.
	WaitKey(delay int) int
	Close() error
}

var newWindow = func(title string, size videoframe.Dimensions) window {
	return &openCVWindow{w: gocv.NewWindow(title), size: size, scaled: gocv.NewMat()}
}

type openCVWindow struct {
	w      *gocv.Window
	size   videoframe.Dimensions
	scaled gocv.Mat
}

func (o *openCVWindow) Show(r process.Result) error {
	mat, ok := r.Frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV window")
	}
	return o.w.IMShow(fitToSize(*mat, o.size, &o.scaled))
}

// fitToSize stretches src into dst when size is set and differs from the
// source, otherwise src is returned untouched.
func fitToSize(src gocv.Mat, size videoframe.Dimensions, dst *gocv.Mat) gocv.Mat {
	if !size.Valid() || (src.Cols() == size.W && src.Rows() == size.H) {
		return src
	}
	gocv.Resize(src, dst, image.Pt(size.W, size.H), 0, 0, gocv.InterpolationLinear)
	return *dst
}

func (o *openCVWindow) WaitKey(delay int) int {
	return o.w.WaitKey(delay)
}

func (o *openCVWindow) Close() error {
	o.scaled.Close()
	return o.w.Close()
}

// New returns a process which polls frames without blocking and shows each
// new one. Pressing q or escape in the window calls onQuit.
func New(frames Frames, settings Settings, onQuit func()) process.Process {
	if settings.Refresh <= 0 {
		settings.Refresh = DefaultRefresh
	}
	if len(settings.Title) == 0 {
		settings.Title = "dragoneye"
	}
	d := &display{frames: frames, settings: settings, onQuit: onQuit}
	return process.NewTask(process.TaskSettings{
		WaitForShutdownMsg: "Closing display window...",
		Process:            d.run,
	})
}

type display struct {
	frames   Frames
	settings Settings
	onQuit   func()
	shown    int
}

func (d *display) run(ctx context.Context) []chan interface{} {
	stopped := make(chan interface{})
	go func() {
		defer close(stopped)
		// window calls have to stay on the thread that created the window
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		win := newWindow(d.settings.Title, d.settings.Size)
		defer win.Close()

		ticker := time.NewTicker(d.settings.Refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if d.refresh(win) {
					return
				}
			}
		}
	}()
	return []chan interface{}{stopped}
}

// refresh shows the latest frame if there is one and reports whether the
// viewer asked to quit.
func (d *display) refresh(win window) bool {
	if result, ok := d.frames.Read(0); ok {
		if err := win.Show(result); err != nil {
			log.Error("Unable to show frame: %v", err)
		} else {
			d.shown++
		}
		result.Close()
	}

	switch win.WaitKey(1) {
	case keyEscape, keyQ:
		log.Info("Display closed by viewer after [%d] frames", d.shown)
		if d.onQuit != nil {
			d.onQuit()
		}
		return true
	}
	return false
}
