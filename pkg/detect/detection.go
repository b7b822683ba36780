package detect

import (
	"fmt"
	"image"

	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var ErrDetector = xerror.NewWithKind("DETECTOR", "detector failure")

// Shape is either a Box or a Polygon.
type Shape interface {
	// Anchor is where the label for the shape is drawn from.
	Anchor() image.Point
	Bounds() image.Rectangle
	transform(videoframe.Transform) Shape
}

// Box is an axis aligned rectangle in pixel coordinates.
type Box struct {
	Min, Max image.Point
}

func (b Box) Anchor() image.Point { return b.Min }

func (b Box) Bounds() image.Rectangle { return image.Rectangle{Min: b.Min, Max: b.Max}.Canon() }

func (b Box) transform(t videoframe.Transform) Shape {
	return Box{Min: t.Apply(b.Min), Max: t.Apply(b.Max)}
}

// Polygon is an ordered list of vertices, for oriented boxes this is
// always four corners.
type Polygon struct {
	Points []image.Point
}

func (p Polygon) Anchor() image.Point {
	if len(p.Points) == 0 {
		return image.Point{}
	}
	return p.Points[0]
}

func (p Polygon) Bounds() image.Rectangle {
	if len(p.Points) == 0 {
		return image.Rectangle{}
	}
	// image.Rectangle.Union ignores empty rectangles, so points are folded in by hand
	r := image.Rectangle{Min: p.Points[0], Max: p.Points[0]}
	for _, pt := range p.Points[1:] {
		if pt.X < r.Min.X {
			r.Min.X = pt.X
		}
		if pt.Y < r.Min.Y {
			r.Min.Y = pt.Y
		}
		if pt.X > r.Max.X {
			r.Max.X = pt.X
		}
		if pt.Y > r.Max.Y {
			r.Max.Y = pt.Y
		}
	}
	return r
}

func (p Polygon) transform(t videoframe.Transform) Shape {
	pts := make([]image.Point, len(p.Points))
	for i, pt := range p.Points {
		pts[i] = t.Apply(pt)
	}
	return Polygon{Points: pts}
}

type Detection struct {
	Shape      Shape
	Label      string
	Confidence float64
}

// Caption is the text drawn next to the detection.
func (d Detection) Caption() string {
	return fmt.Sprintf("%s: %.2f%%", d.Label, d.Confidence*100)
}

// Transform returns copies of the detections with every coordinate mapped
// through t.
func Transform(detections []Detection, t videoframe.Transform) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Shape != nil {
			d.Shape = d.Shape.transform(t)
		}
		out = append(out, d)
	}
	return out
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
