package detect

import (
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

// Detector finds objects in a frame. Implementations must not modify the
// frame they are given.
type Detector interface {
	Detect(videoframe.NoCloser) ([]Detection, error)
}

type Closer interface {
	Close() error
}

// DetectorFunc adapts a plain function into a Detector.
type DetectorFunc func(videoframe.NoCloser) ([]Detection, error)

func (f DetectorFunc) Detect(frame videoframe.NoCloser) ([]Detection, error) { return f(frame) }

// Postprocessor filters or modifies detections after a detector has run.
type Postprocessor func([]Detection) []Detection

// NewScoreFilter drops detections with a confidence below conf.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Confidence >= conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewAreaFilter drops detections whose bounds cover less than area pixels.
func NewAreaFilter(area int) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Shape == nil {
				continue
			}
			b := d.Shape.Bounds()
			if b.Dx()*b.Dy() >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// WithPostprocessors runs each postprocessor, in order, over the output of det.
func WithPostprocessors(det Detector, posts ...Postprocessor) Detector {
	return DetectorFunc(func(frame videoframe.NoCloser) ([]Detection, error) {
		detections, err := det.Detect(frame)
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			detections = p(detections)
		}
		return detections, nil
	})
}
