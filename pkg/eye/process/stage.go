package process

import (
	"errors"

	"github.com/tauraamui/dragoneye/pkg/annotate"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

// Stage turns one captured frame into an annotated copy of it.
//
// When TargetSize is set the frame is scaled down before detection. By
// default the detections are drawn onto the small frame, which is then scaled
// back up to the size of the input. With AnnotateFullResolution the
// detections are instead mapped back and drawn onto a full size copy, which
// keeps labels legible at the cost of one extra copy.
type Stage struct {
	Detector               detect.Detector
	Annotator              annotate.Annotator
	Scaler                 videobackend.Scaler
	TargetSize             videoframe.Dimensions
	Resize                 videoframe.ResizeMode
	AnnotateFullResolution bool
}

// Process never modifies frame. The returned frame is owned by the caller,
// detections are in the coordinate space of the input frame.
func (s Stage) Process(frame videoframe.NoCloser) (videoframe.Frame, []detect.Detection, error) {
	dims := frame.Dimensions()
	if !s.TargetSize.Valid() || s.TargetSize == dims {
		return s.processFullSize(frame)
	}

	small, t, err := s.Scaler.Scale(frame, s.TargetSize, s.resizeMode())
	if err != nil {
		return nil, nil, xerror.Errorf("unable to scale frame for detection: %w", err)
	}
	defer small.Close()

	detections, err := s.detect(small)
	if err != nil {
		return nil, nil, err
	}
	mapped := detect.Transform(detections, t.Inverse(dims))

	if s.AnnotateFullResolution {
		out, err := s.Scaler.Clone(frame)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Annotator.Annotate(out, mapped); err != nil {
			out.Close()
			return nil, nil, xerror.Errorf("unable to annotate frame: %w", err)
		}
		return out, mapped, nil
	}

	if err := s.Annotator.Annotate(small, detections); err != nil {
		return nil, nil, xerror.Errorf("unable to annotate frame: %w", err)
	}
	out, err := s.restore(small, t, dims)
	if err != nil {
		return nil, nil, err
	}
	return out, mapped, nil
}

func (s Stage) processFullSize(frame videoframe.NoCloser) (videoframe.Frame, []detect.Detection, error) {
	out, err := s.Scaler.Clone(frame)
	if err != nil {
		return nil, nil, err
	}
	detections, err := s.detect(out)
	if err != nil {
		out.Close()
		return nil, nil, err
	}
	if err := s.Annotator.Annotate(out, detections); err != nil {
		out.Close()
		return nil, nil, xerror.Errorf("unable to annotate frame: %w", err)
	}
	return out, detections, nil
}

// restore scales an annotated small frame back to the original size, only
// the content area is kept so letterbox bars are not stretched into the
// output.
func (s Stage) restore(small videoframe.Frame, t videoframe.Transform, dims videoframe.Dimensions) (videoframe.Frame, error) {
	var content videoframe.NoCloser = small
	sd := small.Dimensions()
	if t.Content.Min.X > 0 || t.Content.Min.Y > 0 || t.Content.Dx() != sd.W || t.Content.Dy() != sd.H {
		cropped, err := s.Scaler.Crop(small, t.Content)
		if err != nil {
			return nil, xerror.Errorf("unable to crop letterbox: %w", err)
		}
		defer cropped.Close()
		content = cropped
	}

	out, _, err := s.Scaler.Scale(content, dims, videoframe.ResizeStretch)
	if err != nil {
		return nil, xerror.Errorf("unable to scale annotated frame back up: %w", err)
	}
	return out, nil
}

func (s Stage) detect(frame videoframe.NoCloser) ([]detect.Detection, error) {
	detections, err := s.Detector.Detect(frame)
	if err == nil {
		return detections, nil
	}
	if errors.Is(err, detect.ErrDetector) {
		return nil, err
	}
	return nil, xerror.Errorf("%w: %s", detect.ErrDetector, err)
}

func (s Stage) resizeMode() videoframe.ResizeMode {
	if s.Resize.Valid() {
		return s.Resize
	}
	return videoframe.ResizeStretch
}
