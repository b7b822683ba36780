package detect_test

import (
	"errors"
	"image"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

func TestTransformScalesBoxesAndPolygons(t *testing.T) {
	is := is.New(t)
	small := videoframe.Dimensions{W: 320, H: 320}
	large := videoframe.Dimensions{W: 1280, H: 640}
	toLarge := videoframe.NewTransform(large, small, videoframe.ResizeStretch).Inverse(large)

	in := []detect.Detection{
		{Shape: detect.Box{Min: image.Pt(10, 20), Max: image.Pt(30, 40)}, Label: "car", Confidence: 0.5},
		{Shape: detect.Polygon{Points: []image.Point{{1, 1}, {5, 1}, {5, 5}}}, Label: "ship", Confidence: 0.9},
	}
	out := detect.Transform(in, toLarge)

	is.Equal(out[0].Shape, detect.Box{Min: image.Pt(40, 40), Max: image.Pt(120, 80)})
	is.Equal(out[1].Shape, detect.Polygon{Points: []image.Point{{4, 2}, {20, 2}, {20, 10}}})
	is.Equal(out[0].Label, "car")
	is.Equal(out[1].Confidence, 0.9)

	// originals are left untouched
	is.Equal(in[0].Shape, detect.Box{Min: image.Pt(10, 20), Max: image.Pt(30, 40)})
}

func TestCaptionFormatsConfidenceAsPercentage(t *testing.T) {
	is := is.New(t)
	d := detect.Detection{Label: "person", Confidence: 0.1234}
	is.Equal(d.Caption(), "person: 12.34%")
}

func TestPolygonBoundsAndAnchor(t *testing.T) {
	is := is.New(t)
	p := detect.Polygon{Points: []image.Point{{7, 3}, {2, 9}, {11, 4}}}
	is.Equal(p.Bounds(), image.Rect(2, 3, 11, 9))
	is.Equal(p.Anchor(), image.Pt(7, 3))
	is.Equal(detect.Polygon{}.Bounds(), image.Rectangle{})
}

func TestScoreFilterDropsLowConfidence(t *testing.T) {
	is := is.New(t)
	filter := detect.NewScoreFilter(0.4)
	out := filter([]detect.Detection{{Label: "a", Confidence: 0.39}, {Label: "b", Confidence: 0.4}, {Label: "c", Confidence: 1}})
	is.Equal(len(out), 2)
	is.Equal(out[0].Label, "b")
	is.Equal(out[1].Label, "c")
}

func TestAreaFilterDropsSmallShapes(t *testing.T) {
	is := is.New(t)
	filter := detect.NewAreaFilter(100)
	out := filter([]detect.Detection{
		{Label: "small", Shape: detect.Box{Max: image.Pt(5, 5)}},
		{Label: "big", Shape: detect.Box{Max: image.Pt(10, 10)}},
		{Label: "shapeless"},
	})
	is.Equal(len(out), 1)
	is.Equal(out[0].Label, "big")
}

type noFrame struct{}

func (noFrame) DataRef() interface{} { return nil }
func (noFrame) Dimensions() videoframe.Dimensions { return videoframe.Dimensions{} }

func TestWithPostprocessorsRunsInOrder(t *testing.T) {
	is := is.New(t)
	det := detect.DetectorFunc(func(videoframe.NoCloser) ([]detect.Detection, error) {
		return []detect.Detection{{Label: "a", Confidence: 0.9}, {Label: "b", Confidence: 0.1}}, nil
	})
	var seen []int
	count := func(in []detect.Detection) []detect.Detection { seen = append(seen, len(in)); return in }

	out, err := detect.WithPostprocessors(det, count, detect.NewScoreFilter(0.5), count).Detect(noFrame{})
	is.NoErr(err)
	is.Equal(len(out), 1)
	is.Equal(seen, []int{2, 1})
}

func TestWithPostprocessorsPassesErrorsThrough(t *testing.T) {
	is := is.New(t)
	det := detect.DetectorFunc(func(videoframe.NoCloser) ([]detect.Detection, error) {
		return nil, xerror.Errorf("model exploded: %w", detect.ErrDetector)
	})
	_, err := detect.WithPostprocessors(det, detect.NewScoreFilter(0.5)).Detect(noFrame{})
	is.True(errors.Is(err, detect.ErrDetector))
}
