package mocks

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

type Options struct {
	// Frames are handed out in order by Read.
	Frames          []*Frame
	// UntrackedFrames makes Read produce a fresh frame on every call
	// once Frames runs out.
	UntrackedFrames bool
	Dimensions      videoframe.Dimensions
	ReadFunc        func() (videoframe.Frame, error)
	CloseErr        error
}

// Source replays scripted frames and counts how it was used.
type Source struct {
	opts   Options
	uuid   string
	mu     sync.Mutex
	index  int
	reads  int
	closes int
}

func NewSource(opts Options) *Source {
	return &Source{opts: opts, uuid: uuid.NewString()}
}

func (m *Source) UUID() string { return m.uuid }

func (m *Source) Read() (videoframe.Frame, error) {
	m.mu.Lock()
	m.reads++
	readFunc := m.opts.ReadFunc
	m.mu.Unlock()
	if readFunc != nil {
		return readFunc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < len(m.opts.Frames) {
		f := m.opts.Frames[m.index]
		m.index++
		return f, nil
	}
	if m.opts.UntrackedFrames {
		m.index++
		return NewFrame(m.index, m.opts.Dimensions.W, m.opts.Dimensions.H), nil
	}
	return nil, xerror.New("run out of frames to read")
}

func (m *Source) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return m.opts.CloseErr
}

func (m *Source) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *Source) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
