package mocks

import (
	"image"
	"sync"

	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
)

// Frame is an in memory stand in for a video frame. DataRef returns the
// frame itself so fakes further down the pipeline can inspect it.
type Frame struct {
	// ID survives scaling and cloning so tests can tell which captured
	// frame a processed one came from.
	ID        int
	W, H      int
	Annotated bool
	mu        sync.Mutex
	closes    int
	onClose   func()
}

func NewFrame(id, w, h int) *Frame {
	return &Frame{ID: id, W: w, H: h}
}

func (m *Frame) DataRef() interface{} {
	return m
}

func (m *Frame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: m.W, H: m.H}
}

func (m *Frame) Close() {
	m.mu.Lock()
	m.closes++
	onClose := m.onClose
	m.mu.Unlock()
	if onClose != nil {
		onClose()
	}
}

func (m *Frame) OnClose(f func()) *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = f
	return m
}

func (m *Frame) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *Frame) IsAnnotated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Annotated
}

func (m *Frame) markAnnotated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Annotated = true
}

func frameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	return NewFrame(0, b.Dx(), b.Dy())
}
