package videoframe_test

import (
	"image"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestStretchTransformScalesAxesIndependently(t *testing.T) {
	is := is.New(t)
	tr := videoframe.NewTransform(
		videoframe.Dimensions{W: 1280, H: 960}, videoframe.Dimensions{W: 320, H: 320}, videoframe.ResizeStretch,
	)
	is.Equal(tr.ScaleX, 0.25)
	is.Equal(tr.ScaleY, 1.0/3.0)
	is.Equal(tr.Content, image.Rect(0, 0, 320, 320))
	is.Equal(tr.Apply(image.Pt(1280, 960)), image.Pt(320, 320))
}

func TestLetterboxTransformKeepsAspectAndCentres(t *testing.T) {
	is := is.New(t)
	tr := videoframe.NewTransform(
		videoframe.Dimensions{W: 640, H: 480}, videoframe.Dimensions{W: 320, H: 320}, videoframe.ResizeLetterbox,
	)
	is.Equal(tr.ScaleX, 0.5)
	is.Equal(tr.ScaleY, 0.5)
	is.Equal(tr.Content, image.Rect(0, 40, 320, 280))
	is.Equal(tr.Apply(image.Pt(0, 0)), image.Pt(0, 40))
	is.Equal(tr.Invert(image.Pt(320, 280)), image.Pt(640, 480))
}

func TestScaledPointRoundTripsWithinOnePixel(t *testing.T) {
	is := is.New(t)
	sources := []videoframe.Dimensions{{W: 1920, H: 1080}, {W: 640, H: 480}, {W: 333, H: 777}, {W: 100, H: 100}}
	targets := []videoframe.Dimensions{{W: 320, H: 320}, {W: 640, H: 360}, {W: 97, H: 53}}

	for _, mode := range []videoframe.ResizeMode{videoframe.ResizeStretch, videoframe.ResizeLetterbox} {
		for _, src := range sources {
			for _, dst := range targets {
				tr := videoframe.NewTransform(src, dst, mode)
				inv := tr.Inverse(src)
				for x := 0; x < dst.W; x += 7 {
					for y := 0; y < dst.H; y += 5 {
						p := image.Pt(x, y)
						// a point detected in the scaled image is at (x/scale, y/scale) in the source
						want := tr.Invert(p)
						got := inv.Apply(p)
						is.True(abs(want.X-got.X) <= 1)
						is.True(abs(want.Y-got.Y) <= 1)

						fx := float64(src.W) / float64(dst.W)
						if mode == videoframe.ResizeStretch {
							is.True(abs(got.X-int(float64(x)*fx+0.5)) <= 1)
						}
					}
				}
			}
		}
	}
}

func TestInvalidDimensionsGiveIdentity(t *testing.T) {
	is := is.New(t)
	tr := videoframe.NewTransform(videoframe.Dimensions{}, videoframe.Dimensions{W: 10, H: 10}, videoframe.ResizeStretch)
	is.Equal(tr.Apply(image.Pt(3, 4)), image.Pt(3, 4))
}
