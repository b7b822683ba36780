package eye

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tauraamui/dragoneye/pkg/annotate"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/eye/display"
	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/eye/record"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/source"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

func dimensions(s configdef.Size) videoframe.Dimensions {
	return videoframe.Dimensions{W: s.W, H: s.H}
}

// ApplyDebug switches logging to debug when the config asks for it, otherwise
// the level chosen at startup is left alone.
func ApplyDebug(v configdef.Values) {
	if v.Debug {
		log.SetLevelFromString("debug")
	}
}

func SourceSettings(v configdef.Values) source.Settings {
	return source.Settings{
		Mode:          source.Mode(v.Mode),
		StreamAddress: v.StreamAddress,
		CameraIndex:   v.CameraIndex,
		MonitorIndex:  v.MonitorIndex,
		WindowTitle:   v.WindowTitle,
		ImagePath:     expandHome(v.ImagePath),
		DisplaySize:   dimensions(v.DisplaySize),
		ProbeTimeout:  time.Duration(v.ProbeTimeoutMS) * time.Millisecond,
	}
}

func ProcessSettings(v configdef.Values) process.Settings {
	return process.Settings{
		SkipFactor:             v.SkipFactor,
		TargetSize:             dimensions(v.TargetSize),
		Resize:                 videoframe.ResizeMode(v.Resize),
		AnnotateFullResolution: v.AnnotateFullResolution,
		CaptureStopTimeout:     time.Duration(v.StopTimeoutMS) * time.Millisecond,
	}
}

func RecordSettings(v configdef.Values) record.Settings {
	return record.Settings{
		PersistLocation: expandHome(v.Record.PersistLoc),
		FPS:             v.Record.FPS,
		ClipLength:      time.Duration(v.Record.SecondsPerClip) * time.Second,
		Schedule:        v.Record.Schedule,
	}
}

func DisplaySettings(v configdef.Values) display.Settings {
	return display.Settings{
		Title:   v.Display.Title,
		Refresh: time.Duration(v.Display.RefreshMS) * time.Millisecond,
		Size:    dimensions(v.DisplaySize),
	}
}

// NewStage builds the single frame pipeline used by offline processing, with
// the same scaling settings the live processor would use.
func NewStage(v configdef.Values, det detect.Detector, scaler videobackend.Scaler) process.Stage {
	ps := ProcessSettings(v)
	return process.Stage{
		Detector:               det,
		Annotator:              newAnnotator(),
		Scaler:                 scaler,
		TargetSize:             ps.TargetSize,
		Resize:                 ps.Resize,
		AnnotateFullResolution: ps.AnnotateFullResolution,
	}
}

// NewDetector loads the configured model and applies the confidence and area
// filters to whatever it finds.
var NewDetector = func(d configdef.Detector) (detect.Detector, error) {
	det, err := detect.New(detect.Settings{
		Variant:       detect.Variant(d.Variant),
		Model:         expandHome(d.Model),
		Config:        expandHome(d.Config),
		Classes:       d.Classes,
		ClassesFile:   expandHome(d.ClassesFile),
		InputSize:     d.InputSize,
		MinConfidence: d.MinConfidence,
		NMSThreshold:  d.NMSThreshold,
	})
	if err != nil {
		return nil, err
	}
	return closingDetector{
		Detector: detect.WithPostprocessors(det, detect.NewScoreFilter(d.MinConfidence), detect.NewAreaFilter(d.MinArea)),
		closer:   det,
	}, nil
}

// closingDetector keeps hold of the model underneath a postprocessing
// wrapper so it can still be released.
type closingDetector struct {
	detect.Detector
	closer detect.Detector
}

func (c closingDetector) Close() error {
	if closer, ok := c.closer.(detect.Closer); ok {
		return closer.Close()
	}
	return nil
}

var newAnnotator = func() annotate.Annotator {
	return annotate.New(annotate.DefaultStyle())
}

var userHomeDir = func() (string, error) {
	return os.UserHomeDir()
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := userHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
