package process

import (
	"context"
	"sync"
	"time"

	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/slot"
	"github.com/tauraamui/dragoneye/pkg/source"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

// captureProcess owns the source. It is the only thing which reads from it
// and it closes the source once its loop has exited, so a read blocked
// inside the source is never raced by the close.
type captureProcess struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stopping  chan interface{}
	src       source.Source
	dest      *slot.Latest[videoframe.Frame]
	closeOnce sync.Once
	closeErr  error
}

func NewCaptureProcess(src source.Source, dest *slot.Latest[videoframe.Frame]) Process {
	return newCaptureProcess(src, dest)
}

func newCaptureProcess(src source.Source, dest *slot.Latest[videoframe.Frame]) *captureProcess {
	ctx, cancel := context.WithCancel(context.Background())
	return &captureProcess{
		ctx: ctx, cancel: cancel,
		src: src, dest: dest, stopping: make(chan interface{}),
	}
}

func (proc *captureProcess) Start() {
	go proc.run()
}

func (proc *captureProcess) run() {
	defer close(proc.stopping)
	defer proc.release()
	for {
		time.Sleep(1 * time.Microsecond)
		select {
		case <-proc.ctx.Done():
			return
		default:
			capture(proc.src, proc.dest)
		}
	}
}

func capture(src source.Source, frames *slot.Latest[videoframe.Frame]) {
	frame, err := src.Read()
	if err != nil {
		log.Debug("Unable to capture frame: %v", err)
		return
	}
	frames.Put(frame)
}

func (proc *captureProcess) release() {
	proc.closeOnce.Do(func() {
		log.Debug("Releasing source [%s]", proc.src.UUID())
		proc.closeErr = proc.src.Close()
	})
}

func (proc *captureProcess) Stop() {
	proc.cancel()
}

func (proc *captureProcess) Wait() {
	<-proc.stopping
}

// waitFor waits at most timeout for the loop to exit.
func (proc *captureProcess) waitFor(timeout time.Duration) bool {
	if timeout <= 0 {
		proc.Wait()
		return true
	}
	select {
	case <-proc.stopping:
		return true
	case <-time.After(timeout):
		return false
	}
}
