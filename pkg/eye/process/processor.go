package process

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoneye/pkg/annotate"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/slot"
	"github.com/tauraamui/dragoneye/pkg/source"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

type Settings struct {
	// SkipFactor of n sends every nth captured frame to the detector.
	SkipFactor             int
	TargetSize             videoframe.Dimensions
	Resize                 videoframe.ResizeMode
	AnnotateFullResolution bool
	// CaptureStopTimeout bounds how long Stop waits on a source read which
	// is still blocked. Zero waits as long as it takes.
	CaptureStopTimeout     time.Duration
}

const defaultCaptureStopTimeout = 5 * time.Second

type Stats struct {
	Captured       uint64
	CaptureDrops   uint64
	Received       uint64
	Skipped        uint64
	Processed      uint64
	ProcessedDrops uint64
}

// FrameProcessor runs a capture loop and a detection loop joined by single
// frame slots, so a reader always gets the most recently annotated frame and
// neither loop ever waits on a slower stage.
type FrameProcessor struct {
	uuid      string
	settings  Settings
	captured  *slot.Latest[videoframe.Frame]
	processed *slot.Latest[Result]
	capture   *captureProcess
	detection *detectionProcess
	stopOnce  sync.Once
	stopErr   error
}

// Start takes ownership of src and begins capturing from it straight away.
func Start(
	src source.Source, settings Settings, det detect.Detector, ann annotate.Annotator, scaler videobackend.Scaler,
) (*FrameProcessor, error) {
	if src == nil {
		return nil, xerror.New("frame processor needs a source")
	}
	if det == nil || ann == nil || scaler == nil {
		return nil, xerror.New("frame processor needs a detector, annotator and scaler")
	}
	if settings.SkipFactor < 1 {
		return nil, xerror.Errorf("skip factor must be at least 1, got %d", settings.SkipFactor)
	}
	if !settings.TargetSize.Valid() {
		return nil, xerror.Errorf("target size %dx%d is invalid", settings.TargetSize.W, settings.TargetSize.H)
	}
	if len(settings.Resize) == 0 {
		settings.Resize = videoframe.ResizeStretch
	}
	if !settings.Resize.Valid() {
		return nil, xerror.Errorf("unknown resize mode: %s", settings.Resize)
	}
	if settings.CaptureStopTimeout == 0 {
		settings.CaptureStopTimeout = defaultCaptureStopTimeout
	}

	captured := slot.New(func(f videoframe.Frame) { f.Close() })
	processed := slot.New(func(r Result) { r.Close() })
	stage := Stage{
		Detector:               det,
		Annotator:              ann,
		Scaler:                 scaler,
		TargetSize:             settings.TargetSize,
		Resize:                 settings.Resize,
		AnnotateFullResolution: settings.AnnotateFullResolution,
	}

	fp := FrameProcessor{
		uuid:      uuid.NewString(),
		settings:  settings,
		captured:  captured,
		processed: processed,
		capture:   newCaptureProcess(src, captured),
		detection: newDetectionProcess(captured, processed, stage, settings.SkipFactor),
	}

	log.Info("Starting frame processor [%s]: skip factor %d, target size %dx%d (%s)",
		fp.uuid, settings.SkipFactor, settings.TargetSize.W, settings.TargetSize.H, settings.Resize)
	fp.detection.Start()
	fp.capture.Start()
	return &fp, nil
}

func (fp *FrameProcessor) UUID() string { return fp.uuid }

// Read returns the latest annotated frame not yet read, waiting up to
// timeout for one. A timeout of zero never blocks.
func (fp *FrameProcessor) Read(timeout time.Duration) (Result, bool) {
	return fp.processed.Get(timeout)
}

// Err reports the detector failure which ended detection, if any.
func (fp *FrameProcessor) Err() error {
	return fp.detection.Err()
}

func (fp *FrameProcessor) Stats() Stats {
	return Stats{
		Captured:       fp.captured.Puts(),
		CaptureDrops:   fp.captured.Drops(),
		Received:       fp.detection.Received(),
		Skipped:        fp.detection.Skipped(),
		Processed:      fp.processed.Puts(),
		ProcessedDrops: fp.processed.Drops(),
	}
}

// Stop ends both loops, releases the source and frees any frames still held.
// It returns the detector error, if there was one, and is safe to call any
// number of times.
func (fp *FrameProcessor) Stop() error {
	fp.stopOnce.Do(func() {
		log.Info("Stopping frame processor [%s]...", fp.uuid)
		fp.capture.Stop()
		fp.detection.Stop()

		fp.detection.Wait()
		if !fp.capture.waitFor(fp.settings.CaptureStopTimeout) {
			log.Warn("Source read still blocked after %s, it will be released once the read returns",
				fp.settings.CaptureStopTimeout)
			go func() {
				fp.capture.Wait()
				fp.captured.Drain()
			}()
		}

		fp.captured.Drain()
		fp.processed.Drain()
		fp.stopErr = fp.detection.Err()
	})
	return fp.stopErr
}
