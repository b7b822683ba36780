package offline

import (
	"github.com/disintegration/imaging"
	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/source"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

var saveImage = func(path string, frame videoframe.NoCloser) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to save as image")
	}
	img, err := mat.ToImage()
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// ProcessImage annotates a single still image. The image is fitted to size
// first when size is valid, the output format follows the output extension.
func ProcessImage(backend videobackend.Backend, stage process.Stage, input, output string, size videoframe.Dimensions) (Report, error) {
	report := Report{Output: output}
	if len(output) == 0 {
		p, err := DefaultOutputPath(input)
		if err != nil {
			return report, ioError(err)
		}
		report.Output = p
	}

	img, err := source.LoadImage(input, size)
	if err != nil {
		return report, ioError(err)
	}
	frame, err := backend.NewFrameFromImage(img)
	if err != nil {
		return report, ioError(err)
	}
	defer frame.Close()
	report.Dimensions = frame.Dimensions()

	out, detections, err := stage.Process(frame)
	if err != nil {
		return report, err
	}
	defer out.Close()

	if err := saveImage(report.Output, out); err != nil {
		return report, ioError(err)
	}
	report.Frames = 1
	log.Info("Found [%d] objects in [%s], saved to [%s]", len(detections), input, report.Output)
	return report, nil
}
