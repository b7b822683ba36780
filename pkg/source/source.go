// Package source abstracts where frames come from: a network camera, a local
// camera device, a region of the screen, a window, a still image or the mock
// backend's synthetic stream.
package source

import (
	"context"
	"time"

	"github.com/tauraamui/dragoneye/pkg/streamprobe"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var (
	// ErrConfiguration means the capture target is missing or cannot be
	// resolved. It is only ever returned from Open.
	ErrConfiguration    = xerror.NewWithKind("CONFIGURATION", "invalid capture target")
	// ErrCaptureTransient is returned by Read for a single failed grab, the
	// caller should try again.
	ErrCaptureTransient = xerror.NewWithKind("CAPTURE_TRANSIENT", "frame capture failed")
)

type Mode string

const (
	ModeCameraStream Mode = "camera-stream"
	ModeLocalCamera  Mode = "local-camera"
	ModeScreenRegion Mode = "screen-region"
	ModeWindowRegion Mode = "window-region"
	ModeStillImage   Mode = "still-image"
	ModeMock         Mode = "mock"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeCameraStream, ModeLocalCamera, ModeScreenRegion, ModeWindowRegion, ModeStillImage, ModeMock:
		return true
	}
	return false
}

// Source produces frames on demand. Read may block for as long as the
// underlying medium needs. Close is safe to call more than once.
type Source interface {
	UUID() string
	Read() (videoframe.Frame, error)
	Close() error
}

type Settings struct {
	Mode          Mode
	StreamAddress string
	CameraIndex   int
	// MonitorIndex 0 is every monitor together, 1 onwards are the individual
	// monitors.
	MonitorIndex  int
	WindowTitle   string
	ImagePath     string
	// DisplaySize is what still images are resized to.
	DisplaySize   videoframe.Dimensions
	// ProbeTimeout, when set, bounds a reachability check of a stream's host
	// made before the backend is asked to open it.
	ProbeTimeout  time.Duration
}

// Open resolves settings into a ready to read source. Any problem with the
// capture target is returned as ErrConfiguration.
func Open(ctx context.Context, settings Settings, backend videobackend.Backend) (Source, error) {
	switch settings.Mode {
	case ModeCameraStream:
		addr, err := StreamURL(settings.StreamAddress)
		if err != nil {
			return nil, configurationError(err)
		}
		if settings.ProbeTimeout > 0 {
			if err := probeStream(ctx, addr, settings.ProbeTimeout); err != nil {
				return nil, configurationError(err)
			}
		}
		conn, err := backend.Connect(ctx, addr)
		if err != nil {
			return nil, configurationError(xerror.Errorf("unable to connect to %s: %w", addr, err))
		}
		return newConnectionSource(conn, backend), nil
	case ModeLocalCamera:
		conn, err := backend.ConnectDevice(ctx, settings.CameraIndex)
		if err != nil {
			return nil, configurationError(xerror.Errorf("unable to open camera %d: %w", settings.CameraIndex, err))
		}
		return newConnectionSource(conn, backend), nil
	case ModeMock:
		mock := videobackend.Mock()
		conn, err := mock.Connect(ctx, settings.StreamAddress)
		if err != nil {
			return nil, configurationError(err)
		}
		return newConnectionSource(conn, mock), nil
	case ModeScreenRegion:
		return newScreenSource(settings.MonitorIndex, backend), nil
	case ModeWindowRegion:
		return newWindowSource(settings.WindowTitle, backend)
	case ModeStillImage:
		return newStillSource(settings.ImagePath, settings.DisplaySize, backend)
	}
	return nil, configurationError(xerror.Errorf("unknown capture mode: %s", settings.Mode))
}

var probeStream = streamprobe.Probe

func configurationError(err error) error {
	return xerror.Errorf("%w: %s", ErrConfiguration, err)
}

func transientError(err error) error {
	return xerror.Errorf("%w: %s", ErrCaptureTransient, err)
}
