package videoclip

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

// Writer streams frames into a single container file. Close finalises the
// container and must be called on every exit path.
type Writer interface {
	Write(videoframe.NoCloser) error
	Close() error
}

const DATE_FORMAT = "2006-01-02"
const DATE_AND_TIME_FORMAT = "2006-01-02 15.04.05"

var Timestamp = func() time.Time {
	return time.Now()
}

// Clip names a recording segment started at a point in time under a root
// persist location.
type Clip struct {
	timestamp           time.Time
	rootPersistLocation string
	fps                 int
}

func New(ploc string, fps int) Clip {
	return Clip{
		timestamp:           Timestamp(),
		rootPersistLocation: ploc,
		fps:                 fps,
	}
}

func (c Clip) FPS() int { return c.fps }

func (c Clip) Started() time.Time { return c.timestamp }

// RootPath is the per day directory the clip is written into.
func (c Clip) RootPath() string {
	return filepath.Join(c.rootPersistLocation, c.timestamp.Format(DATE_FORMAT))
}

func (c Clip) FileName() string {
	return filepath.FromSlash(
		fmt.Sprintf(
			"%s/%s/%s.mp4",
			c.rootPersistLocation,
			c.timestamp.Format(DATE_FORMAT),
			c.timestamp.Format(DATE_AND_TIME_FORMAT)),
	)
}

// Expired reports whether a clip of the given length started at the clip's
// timestamp has ended by now.
func (c Clip) Expired(length time.Duration, now time.Time) bool {
	return !now.Before(c.timestamp.Add(length))
}
