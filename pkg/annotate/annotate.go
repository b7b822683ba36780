package annotate

import (
	"image"
	"image/color"

	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// Annotator draws detections onto a frame in place.
type Annotator interface {
	Annotate(videoframe.Frame, []detect.Detection) error
}

type Style struct {
	BoxColor     color.RGBA
	PolygonColor color.RGBA
	Thickness    int
	FontScale    float64
	// LabelOffset is how far above the shape anchor the caption sits.
	LabelOffset  int
}

// DefaultStyle draws boxes in blue and polygons in red.
func DefaultStyle() Style {
	return Style{
		BoxColor:     color.RGBA{R: 0, G: 0, B: 255, A: 255},
		PolygonColor: color.RGBA{R: 255, G: 0, B: 0, A: 255},
		Thickness:    2,
		FontScale:    0.5,
		LabelOffset:  10,
	}
}

func New(style Style) Annotator {
	return &openCVAnnotator{style: style}
}

type openCVAnnotator struct {
	style Style
}

func (a *openCVAnnotator) Annotate(frame videoframe.Frame, detections []detect.Detection) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV annotator")
	}

	for _, d := range detections {
		var c color.RGBA
		switch shape := d.Shape.(type) {
		case detect.Box:
			c = a.style.BoxColor
			gocv.Rectangle(mat, shape.Bounds(), c, a.style.Thickness)
		case detect.Polygon:
			if len(shape.Points) == 0 {
				continue
			}
			c = a.style.PolygonColor
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{shape.Points})
			gocv.Polylines(mat, pv, true, c, a.style.Thickness)
			pv.Close()
		default:
			continue
		}

		anchor := d.Shape.Anchor()
		gocv.PutText(
			mat,
			d.Caption(),
			image.Pt(anchor.X, anchor.Y-a.style.LabelOffset),
			gocv.FontHersheySimplex,
			a.style.FontScale,
			c,
			a.style.Thickness,
		)
	}
	return nil
}
