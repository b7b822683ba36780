package source

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var openImage = func(path string) (image.Image, error) {
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// LoadImage decodes the image at path and, when size is valid, resizes it to
// exactly that size.
func LoadImage(path string, size videoframe.Dimensions) (image.Image, error) {
	if len(path) == 0 {
		return nil, xerror.New("image path is undefined")
	}
	img, err := openImage(path)
	if err != nil {
		return nil, xerror.Errorf("unable to open image %s: %w", path, err)
	}
	if size.Valid() {
		img = imaging.Resize(img, size.W, size.H, imaging.Lanczos)
	}
	return img, nil
}

// stillSource hands out a copy of the same decoded image on every read.
type stillSource struct {
	uuid    string
	mu      sync.Mutex
	base    videoframe.Frame
	backend videobackend.Backend
}

func newStillSource(path string, size videoframe.Dimensions, backend videobackend.Backend) (*stillSource, error) {
	img, err := LoadImage(path, size)
	if err != nil {
		return nil, configurationError(err)
	}
	base, err := backend.NewFrameFromImage(img)
	if err != nil {
		return nil, configurationError(err)
	}
	return &stillSource{uuid: uuid.NewString(), base: base, backend: backend}, nil
}

func (s *stillSource) UUID() string { return s.uuid }

func (s *stillSource) Read() (videoframe.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, transientError(xerror.New("still image source is closed"))
	}
	frame, err := s.backend.Clone(s.base)
	if err != nil {
		return nil, transientError(err)
	}
	return frame, nil
}

func (s *stillSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil {
		s.base.Close()
		s.base = nil
	}
	return nil
}
