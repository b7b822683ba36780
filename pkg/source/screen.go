package source

import (
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/kbinani/screenshot"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var numActiveDisplays = func() int {
	return screenshot.NumActiveDisplays()
}

var displayBounds = func(i int) image.Rectangle {
	return screenshot.GetDisplayBounds(i)
}

var captureRect = func(r image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(r)
}

// MonitorBounds resolves a monitor index to a screen rectangle. Index 0, and
// any index with no monitor behind it, is every display together.
func MonitorBounds(index int) image.Rectangle {
	n := numActiveDisplays()
	if index > 0 && index <= n {
		return displayBounds(index - 1)
	}
	if index != 0 {
		log.Warn("Monitor [%d] does not exist, capturing all %d displays instead", index, n)
	}

	var all image.Rectangle
	for i := 0; i < n; i++ {
		all = all.Union(displayBounds(i))
	}
	return all
}

// regionSource grabs a fixed rectangle of the screen on every read.
type regionSource struct {
	uuid    string
	region  image.Rectangle
	backend videobackend.Backend
	mu      sync.Mutex
	closed  bool
}

func newScreenSource(monitor int, backend videobackend.Backend) *regionSource {
	return newRegionSource(MonitorBounds(monitor), backend)
}

func newRegionSource(region image.Rectangle, backend videobackend.Backend) *regionSource {
	return &regionSource{uuid: uuid.NewString(), region: region, backend: backend}
}

func (s *regionSource) UUID() string { return s.uuid }

func (s *regionSource) Region() image.Rectangle { return s.region }

func (s *regionSource) Read() (videoframe.Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, transientError(xerror.New("screen source is closed"))
	}
	if s.region.Empty() {
		return nil, transientError(xerror.New("no screen area to capture"))
	}

	img, err := captureRect(s.region)
	if err != nil {
		return nil, transientError(err)
	}
	frame, err := s.backend.NewFrameFromImage(img)
	if err != nil {
		return nil, transientError(err)
	}
	return frame, nil
}

func (s *regionSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
