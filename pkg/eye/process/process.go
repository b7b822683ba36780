package process

import (
	"context"

	"github.com/tauraamui/dragoneye/pkg/log"
)

// Process is a long running loop which can be told to stop and then waited
// on until it has.
type Process interface {
	Start()
	Stop()
	Wait()
}

type TaskSettings struct {
	WaitForShutdownMsg string
	Process            func(context.Context) []chan interface{}
}

// NewTask wraps a function which starts goroutines bound to a context, and
// returns a channel per goroutine closed when it exits, as a Process.
func NewTask(settings TaskSettings) Process {
	return &task{
		waitForShutdownMsg: settings.WaitForShutdownMsg,
		process:            settings.Process,
	}
}

type task struct {
	process            func(context.Context) []chan interface{}
	waitForShutdownMsg string
	canceller          context.CancelFunc
	signals            []chan interface{}
}

func (p *task) logShutdown() {
	if len(p.waitForShutdownMsg) > 0 {
		log.Info(p.waitForShutdownMsg)
	}
}

func (p *task) Start() {
	ctx, canceller := context.WithCancel(context.Background())
	p.canceller = canceller
	p.signals = append(p.signals, p.process(ctx)...)
}

func (p *task) Stop() {
	p.logShutdown()
	if p.canceller != nil {
		p.canceller()
	}
}

func (p *task) Wait() {
	for _, sig := range p.signals {
		<-sig
	}
}
