// Package videotest writes small video files for tests that need a real
// container on disk.
package videotest

import (
	"context"
	"path/filepath"

	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// WriteClip writes count frames of the given size into dir/name, each frame
// a flat colour that changes from frame to frame, and returns the full path.
func WriteClip(dir, name string, count int, dims videoframe.Dimensions, fps float64) (string, error) {
	backend := videobackend.OpenCV()
	path := filepath.Join(dir, name)
	w, err := backend.NewWriter(path, dims, fps)
	if err != nil {
		return "", err
	}
	defer w.Close()

	for i := 0; i < count; i++ {
		mat := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(float64(i*20%255), 128, 64, 0), dims.H, dims.W, gocv.MatTypeCV8UC3,
		)
		err := w.Write(matFrame{&mat})
		mat.Close()
		if err != nil {
			return "", xerror.Errorf("unable to write test frame %d: %w", i, err)
		}
	}
	return path, nil
}

// MockFrames reads count synthetic frames from the mock backend.
func MockFrames(count int) ([]videoframe.Frame, error) {
	backend := videobackend.Mock()
	conn, err := backend.Connect(context.Background(), "videotest")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	frames := make([]videoframe.Frame, 0, count)
	for i := 0; i < count; i++ {
		f := backend.NewFrame()
		if err := conn.Read(f); err != nil {
			f.Close()
			videoframe.CloseAll(frames...)
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

type matFrame struct{ mat *gocv.Mat }

func (f matFrame) DataRef() interface{} { return f.mat }

func (f matFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: f.mat.Cols(), H: f.mat.Rows()}
}
