// Package record writes processed frames to timestamped clip files under a
// persist location, starting a new clip once the current one is long enough.
package record

import (
	"context"
	"time"

	"github.com/tauraamui/dragoneye/pkg/config/schedule"
	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoclip"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

// Frames is anything processed frames can be polled from.
type Frames interface {
	Read(timeout time.Duration) (process.Result, bool)
}

type Settings struct {
	PersistLocation string
	FPS             int
	ClipLength      time.Duration
	// Schedule turns recording off outside of its on periods, an empty
	// schedule records all the time.
	Schedule        schedule.Week
}

const DefaultClipLength = 2 * time.Minute

func (s Settings) validate() error {
	if len(s.PersistLocation) == 0 {
		return xerror.New("recording persist location is undefined")
	}
	if s.FPS < 1 {
		return xerror.Errorf("recording fps must be at least 1, got %d", s.FPS)
	}
	return nil
}

// New returns a process which polls frames at the recording frame rate and
// writes each new one out. Nothing is written until the first frame arrives.
func New(frames Frames, backend videobackend.Backend, settings Settings) (process.Process, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if settings.ClipLength <= 0 {
		settings.ClipLength = DefaultClipLength
	}
	r := &recorder{frames: frames, backend: backend, settings: settings}
	return process.NewTask(process.TaskSettings{
		WaitForShutdownMsg: "Waiting for recorder to finish current clip...",
		Process:            r.run,
	}), nil
}

type recorder struct {
	frames   Frames
	backend  videobackend.Backend
	settings Settings
	clip     videoclip.Clip
	writer   videoclip.Writer
	dims     videoframe.Dimensions
	written  int
}

func (r *recorder) run(ctx context.Context) []chan interface{} {
	stopped := make(chan interface{})
	go func() {
		defer close(stopped)
		defer r.closeClip()

		ticker := time.NewTicker(time.Second / time.Duration(r.settings.FPS))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.poll()
			}
		}
	}()
	return []chan interface{}{stopped}
}

// poll checks the schedule before looking for a frame, so a clip is closed on
// time even when no new frames are arriving.
func (r *recorder) poll() {
	if !r.settings.Schedule.IsOn(videoclip.Timestamp()) {
		r.closeClip()
		if result, ok := r.frames.Read(0); ok {
			result.Close()
		}
		return
	}

	result, ok := r.frames.Read(0)
	if !ok {
		return
	}
	defer result.Close()

	if err := r.write(result.Frame); err != nil {
		log.Error("Unable to record frame: %v", err)
		r.closeClip()
	}
}

func (r *recorder) write(frame videoframe.NoCloser) error {
	dims := frame.Dimensions()
	if r.writer != nil && (dims != r.dims || r.clip.Expired(r.settings.ClipLength, videoclip.Timestamp())) {
		r.closeClip()
	}
	if r.writer == nil {
		if err := r.openClip(dims); err != nil {
			return err
		}
	}
	if err := r.writer.Write(frame); err != nil {
		return err
	}
	r.written++
	return nil
}

func (r *recorder) openClip(dims videoframe.Dimensions) error {
	clip := videoclip.New(r.settings.PersistLocation, r.settings.FPS)
	w, err := r.backend.NewWriter(clip.FileName(), dims, float64(clip.FPS()))
	if err != nil {
		return xerror.Errorf("unable to open clip %s: %w", clip.FileName(), err)
	}
	log.Debug("Recording to clip: [%s]", clip.FileName())
	r.clip, r.writer, r.dims, r.written = clip, w, dims, 0
	return nil
}

func (r *recorder) closeClip() {
	if r.writer == nil {
		return
	}
	if err := r.writer.Close(); err != nil {
		log.Error("Unable to finalise clip [%s]: %v", r.clip.FileName(), err)
	}
	log.Info("Saved clip [%s] with [%d] frames", r.clip.FileName(), r.written)
	r.writer = nil
}
