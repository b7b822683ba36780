package detect

import (
	"fmt"
	"image"
	"math"

	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

// layout describes how a single network output row is arranged.
type layout int

const (
	// darknet rows: cx, cy, w, h (normalised 0..1), objectness, class scores...
	layoutDarknet layout = iota
	// ultralytics rows: cx, cy, w, h (input pixels), class scores...
	layoutUltralytics
	// ultralytics oriented rows: cx, cy, w, h (input pixels), class scores..., angle (radians)
	layoutUltralyticsOriented
)

type candidate struct {
	detection Detection
	bounds    image.Rectangle
	score     float32
}

type decoder struct {
	layout    layout
	classes   []string
	inputSize int
	minScore  float64
	frame     videoframe.Dimensions
}

func (d decoder) className(id int) string {
	if id >= 0 && id < len(d.classes) {
		return d.classes[id]
	}
	return fmt.Sprintf("class %d", id)
}

func (d decoder) scale() (float64, float64) {
	if d.layout == layoutDarknet {
		return float64(d.frame.W), float64(d.frame.H)
	}
	in := float64(d.inputSize)
	return float64(d.frame.W) / in, float64(d.frame.H) / in
}

func (d decoder) scoresOf(row []float32) ([]float32, float64) {
	switch d.layout {
	case layoutDarknet:
		if len(row) < 6 {
			return nil, 0
		}
		return row[5:], float64(row[4])
	case layoutUltralyticsOriented:
		if len(row) < 6 {
			return nil, 0
		}
		return row[4 : len(row)-1], 1
	default:
		if len(row) < 5 {
			return nil, 0
		}
		return row[4:], 1
	}
}

func argmax(values []float32) (int, float32) {
	best, bestV := -1, float32(math.Inf(-1))
	for i, v := range values {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best, bestV
}

// decode turns raw rows into candidates above the minimum score, in frame
// coordinates. Overlap suppression happens afterwards.
func (d decoder) decode(rows [][]float32) []candidate {
	fx, fy := d.scale()
	out := []candidate{}
	for _, row := range rows {
		scores, objectness := d.scoresOf(row)
		if len(scores) == 0 {
			continue
		}
		classID, classScore := argmax(scores)
		conf := clampConfidence(float64(classScore) * objectness)
		if conf < d.minScore {
			continue
		}

		cx, cy := float64(row[0])*fx, float64(row[1])*fy
		w, h := float64(row[2]), float64(row[3])

		c := candidate{score: float32(conf)}
		if d.layout == layoutUltralyticsOriented {
			poly := orientedCorners(float64(row[0]), float64(row[1]), w, h, float64(row[len(row)-1]), fx, fy)
			c.detection = Detection{Shape: poly, Label: d.className(classID), Confidence: conf}
			c.bounds = poly.Bounds()
		} else {
			w, h = w*fx, h*fy
			box := Box{
				Min: image.Pt(int(math.Round(cx-w/2)), int(math.Round(cy-h/2))),
				Max: image.Pt(int(math.Round(cx+w/2)), int(math.Round(cy+h/2))),
			}
			c.detection = Detection{Shape: box, Label: d.className(classID), Confidence: conf}
			c.bounds = box.Bounds()
		}
		out = append(out, c)
	}
	return out
}

// orientedCorners rotates the box corners about its centre in network input
// space, then scales them into the frame.
func orientedCorners(cx, cy, w, h, angle, fx, fy float64) Polygon {
	cos, sin := math.Cos(angle), math.Sin(angle)
	offsets := [4][2]float64{{-w / 2, -h / 2}, {w / 2, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}}
	pts := make([]image.Point, 0, 4)
	for _, o := range offsets {
		x := cx + o[0]*cos - o[1]*sin
		y := cy + o[0]*sin + o[1]*cos
		pts = append(pts, image.Pt(int(math.Round(x*fx)), int(math.Round(y*fy))))
	}
	return Polygon{Points: pts}
}
