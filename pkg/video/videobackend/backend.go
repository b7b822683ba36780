package videobackend

import (
	"context"
	"image"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/video/videoclip"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

var fs = afero.NewOsFs()

type Connection interface {
	UUID() string
	Read(videoframe.Frame) error
	IsOpen() bool
	Close() error
}

// FileReader is a connection to a finite video file. Read returns io.EOF once
// the last frame has been consumed.
type FileReader interface {
	Connection
	FPS() float64
	Dimensions() videoframe.Dimensions
}

// Scaler produces new frames from existing ones without touching the input.
type Scaler interface {
	Scale(videoframe.NoCloser, videoframe.Dimensions, videoframe.ResizeMode) (videoframe.Frame, videoframe.Transform, error)
	Clone(videoframe.NoCloser) (videoframe.Frame, error)
	Crop(videoframe.NoCloser, image.Rectangle) (videoframe.Frame, error)
}

type Backend interface {
	Scaler
	Connect(context.Context, string) (Connection, error)
	ConnectDevice(context.Context, int) (Connection, error)
	OpenFile(string) (FileReader, error)
	NewFrame() videoframe.Frame
	NewFrameFromImage(image.Image) (videoframe.Frame, error)
	NewWriter(path string, dimensions videoframe.Dimensions, fps float64) (videoclip.Writer, error)
}

func Default() Backend {
	return OpenCV()
}

func OpenCV() Backend {
	return &openCVBackend{}
}

// Mock returns a backend whose stream connections render synthetic frames,
// everything else is handled by OpenCV.
func Mock() Backend {
	return &mockVideoBackend{}
}

func Resolve(t string) Backend {
	switch t {
	case "mock":
		return Mock()
	default:
		return Default()
	}
}
