// Package offline annotates a recorded video file frame by frame and writes
// the result to a new file with the same dimensions and frame rate.
package offline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoclip"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var ErrIO = xerror.NewWithKind("IO", "video file failure")

const OutputPrefix = "processed_"

var userHomeDir = func() (string, error) {
	return os.UserHomeDir()
}

// DefaultOutputPath is where the processed copy of input goes when no
// output path is given: ~/Downloads/processed_<input name>.
func DefaultOutputPath(input string) (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", xerror.Errorf("unable to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Downloads", OutputPrefix+filepath.Base(input)), nil
}

type Report struct {
	Output string
	Frames int
	FPS    float64
	videoframe.Dimensions
}

// ProcessFile runs every frame of input through stage and writes it to
// output. Running out of frames is the normal way for this to finish,
// failing to open either file or to write a frame is an ErrIO.
func ProcessFile(ctx context.Context, backend videobackend.Backend, stage process.Stage, input, output string) (Report, error) {
	report := Report{Output: output}
	if len(output) == 0 {
		p, err := DefaultOutputPath(input)
		if err != nil {
			return report, ioError(err)
		}
		report.Output = p
	}

	reader, err := backend.OpenFile(input)
	if err != nil {
		return report, ioError(err)
	}
	defer reader.Close()

	report.FPS = reader.FPS()
	report.Dimensions = reader.Dimensions()
	log.Info("Processing [%s] %dx%d @ %.2ffps into [%s]", input, report.W, report.H, report.FPS, report.Output)

	writer, err := backend.NewWriter(report.Output, report.Dimensions, report.FPS)
	if err != nil {
		return report, ioError(err)
	}

	err = processFrames(ctx, backend, stage, reader, writer, &report)
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = ioError(closeErr)
	}
	return report, err
}

func processFrames(
	ctx context.Context, backend videobackend.Backend, stage process.Stage,
	reader videobackend.FileReader, writer videoclip.Writer, report *Report,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame := backend.NewFrame()
		if err := reader.Read(frame); err != nil {
			frame.Close()
			if errors.Is(err, io.EOF) {
				log.Info("Reached end of [%d] frames", report.Frames)
				return nil
			}
			return ioError(err)
		}

		out, _, err := stage.Process(frame)
		frame.Close()
		if err != nil {
			return err
		}

		err = writer.Write(out)
		out.Close()
		if err != nil {
			return ioError(err)
		}
		report.Frames++
	}
}

func ioError(err error) error {
	return xerror.Errorf("%w: %s", ErrIO, err)
}
