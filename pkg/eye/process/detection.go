package process

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/slot"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

// Result is one annotated frame along with what was found in it. Whoever
// reads a result owns its frame.
type Result struct {
	Frame      videoframe.Frame
	Detections []detect.Detection
	// Sequence is the capture counter value of the frame this came from.
	Sequence uint64
}

func (r Result) Close() {
	if r.Frame != nil {
		r.Frame.Close()
	}
}

const captureSlotTimeout = 1 * time.Second

type detectionProcess struct {
	ctx        context.Context
	cancel     context.CancelFunc
	stopping   chan interface{}
	src        *slot.Latest[videoframe.Frame]
	dest       *slot.Latest[Result]
	stage      Stage
	skipFactor uint64
	received   uint64
	skipped    uint64
	mu         sync.Mutex
	err        error
}

func newDetectionProcess(
	src *slot.Latest[videoframe.Frame], dest *slot.Latest[Result], stage Stage, skipFactor int,
) *detectionProcess {
	ctx, cancel := context.WithCancel(context.Background())
	if skipFactor < 1 {
		skipFactor = 1
	}
	return &detectionProcess{
		ctx: ctx, cancel: cancel, stopping: make(chan interface{}),
		src: src, dest: dest, stage: stage, skipFactor: uint64(skipFactor),
	}
}

func (proc *detectionProcess) Start() {
	go proc.run()
}

func (proc *detectionProcess) run() {
	defer close(proc.stopping)
	for {
		select {
		case <-proc.ctx.Done():
			return
		default:
			if err := proc.next(); err != nil {
				log.Error("Detection stopped: %v", err)
				proc.setErr(err)
				return
			}
		}
	}
}

// next handles at most one frame. Only detector failures are returned,
// anything else costs the current frame and nothing more.
func (proc *detectionProcess) next() error {
	frame, ok := proc.src.Get(captureSlotTimeout)
	if !ok {
		return nil
	}
	defer frame.Close()

	count := atomic.AddUint64(&proc.received, 1)
	if count%proc.skipFactor != 0 {
		atomic.AddUint64(&proc.skipped, 1)
		return nil
	}

	out, detections, err := proc.stage.Process(frame)
	if err != nil {
		if errors.Is(err, detect.ErrDetector) {
			return err
		}
		log.Error("Unable to process frame %d: %v", count, err)
		return nil
	}
	log.Debug("Frame %d: %d detections", count, len(detections))
	proc.dest.Put(Result{Frame: out, Detections: detections, Sequence: count})
	return nil
}

func (proc *detectionProcess) setErr(err error) {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	proc.err = err
}

func (proc *detectionProcess) Err() error {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	return proc.err
}

func (proc *detectionProcess) Received() uint64 { return atomic.LoadUint64(&proc.received) }

func (proc *detectionProcess) Skipped() uint64 { return atomic.LoadUint64(&proc.skipped) }

func (proc *detectionProcess) Stop() {
	proc.cancel()
}

func (proc *detectionProcess) Wait() {
	<-proc.stopping
}
