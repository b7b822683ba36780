package videoframe

import (
	"image"
	"math"
)

type ResizeMode string

const (
	// ResizeStretch scales each axis independently to the target size.
	ResizeStretch   ResizeMode = "stretch"
	// ResizeLetterbox keeps the aspect ratio and pads the remainder of the
	// target with black bars, centred.
	ResizeLetterbox ResizeMode = "letterbox"
)

func (m ResizeMode) Valid() bool {
	return m == ResizeStretch || m == ResizeLetterbox
}

// Transform describes how a point in a source frame lands in a scaled copy:
//
//	scaled = source * Scale + Offset
type Transform struct {
	ScaleX, ScaleY   float64
	OffsetX, OffsetY float64
	// Content is the area of the scaled frame actually covered by the source.
	Content          image.Rectangle
}

// NewTransform works out the mapping of src onto dst for the given mode.
func NewTransform(src, dst Dimensions, mode ResizeMode) Transform {
	if !src.Valid() || !dst.Valid() {
		return Identity(dst)
	}

	sx := float64(dst.W) / float64(src.W)
	sy := float64(dst.H) / float64(src.H)
	if mode != ResizeLetterbox {
		return Transform{ScaleX: sx, ScaleY: sy, Content: image.Rect(0, 0, dst.W, dst.H)}
	}

	s := math.Min(sx, sy)
	cw := int(math.Round(float64(src.W) * s))
	ch := int(math.Round(float64(src.H) * s))
	ox := (dst.W - cw) / 2
	oy := (dst.H - ch) / 2
	return Transform{
		ScaleX:  s,
		ScaleY:  s,
		OffsetX: float64(ox),
		OffsetY: float64(oy),
		Content: image.Rect(ox, oy, ox+cw, oy+ch),
	}
}

func Identity(d Dimensions) Transform {
	return Transform{ScaleX: 1, ScaleY: 1, Content: image.Rect(0, 0, d.W, d.H)}
}

// Apply maps a source point into the scaled frame.
func (t Transform) Apply(p image.Point) image.Point {
	return image.Pt(
		int(math.Round(float64(p.X)*t.ScaleX+t.OffsetX)),
		int(math.Round(float64(p.Y)*t.ScaleY+t.OffsetY)),
	)
}

// Invert maps a point in the scaled frame back to the source frame.
func (t Transform) Invert(p image.Point) image.Point {
	if t.ScaleX == 0 || t.ScaleY == 0 {
		return p
	}
	return image.Pt(
		int(math.Round((float64(p.X)-t.OffsetX)/t.ScaleX)),
		int(math.Round((float64(p.Y)-t.OffsetY)/t.ScaleY)),
	)
}

// Inverse returns the transform going the other way.
func (t Transform) Inverse(src Dimensions) Transform {
	if t.ScaleX == 0 || t.ScaleY == 0 {
		return Identity(src)
	}
	return Transform{
		ScaleX:  1 / t.ScaleX,
		ScaleY:  1 / t.ScaleY,
		OffsetX: -t.OffsetX / t.ScaleX,
		OffsetY: -t.OffsetY / t.ScaleY,
		Content: image.Rect(0, 0, src.W, src.H),
	}
}
