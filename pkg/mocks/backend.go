package mocks

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/dragoneye/pkg/video/videoclip"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

// Scaler resizes mock frames by producing new frames of the target size.
type Scaler struct {
	mu     sync.Mutex
	scales int
}

func (s *Scaler) Scale(
	frame videoframe.NoCloser, dst videoframe.Dimensions, mode videoframe.ResizeMode,
) (videoframe.Frame, videoframe.Transform, error) {
	src, ok := frame.DataRef().(*Frame)
	if !ok {
		return nil, videoframe.Transform{}, xerror.New("must pass mock frame to mock scaler")
	}
	if !dst.Valid() {
		return nil, videoframe.Transform{}, xerror.Errorf("cannot scale frame to %dx%d", dst.W, dst.H)
	}
	s.mu.Lock()
	s.scales++
	s.mu.Unlock()

	out := NewFrame(src.ID, dst.W, dst.H)
	out.Annotated = src.IsAnnotated()
	return out, videoframe.NewTransform(src.Dimensions(), dst, mode), nil
}

func (s *Scaler) Clone(frame videoframe.NoCloser) (videoframe.Frame, error) {
	src, ok := frame.DataRef().(*Frame)
	if !ok {
		return nil, xerror.New("must pass mock frame to mock clone")
	}
	out := NewFrame(src.ID, src.W, src.H)
	out.Annotated = src.IsAnnotated()
	return out, nil
}

func (s *Scaler) Crop(frame videoframe.NoCloser, area image.Rectangle) (videoframe.Frame, error) {
	src, ok := frame.DataRef().(*Frame)
	if !ok {
		return nil, xerror.New("must pass mock frame to mock crop")
	}
	area = area.Intersect(image.Rect(0, 0, src.W, src.H))
	if area.Empty() {
		return nil, xerror.Errorf("crop area %v is outside of %dx%d frame", area, src.W, src.H)
	}
	out := NewFrame(src.ID, area.Dx(), area.Dy())
	out.Annotated = src.IsAnnotated()
	return out, nil
}

func (s *Scaler) Scales() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scales
}

// Backend records what it was asked to open and serves mock frames.
type Backend struct {
	Scaler
	ConnectErr error
	Conn       *Conn
	File       *FileReader
	WriterErr  error

	mu        sync.Mutex
	connected []interface{}
	writers   []*Writer
}

var _ videobackend.Backend = &Backend{}

func (b *Backend) Connect(_ context.Context, addr string) (videobackend.Connection, error) {
	return b.connect(addr)
}

func (b *Backend) ConnectDevice(_ context.Context, index int) (videobackend.Connection, error) {
	return b.connect(index)
}

func (b *Backend) connect(device interface{}) (videobackend.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = append(b.connected, device)
	if b.ConnectErr != nil {
		return nil, b.ConnectErr
	}
	if b.Conn == nil {
		b.Conn = &Conn{}
	}
	return b.Conn, nil
}

func (b *Backend) Connected() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interface{}{}, b.connected...)
}

func (b *Backend) OpenFile(path string) (videobackend.FileReader, error) {
	if b.File == nil {
		return nil, xerror.Errorf("unable to open video file: %s", path)
	}
	return b.File, nil
}

func (b *Backend) NewFrame() videoframe.Frame {
	return NewFrame(0, 0, 0)
}

func (b *Backend) NewFrameFromImage(img image.Image) (videoframe.Frame, error) {
	return frameFromImage(img), nil
}

func (b *Backend) NewWriter(path string, dimensions videoframe.Dimensions, fps float64) (videoclip.Writer, error) {
	if b.WriterErr != nil {
		return nil, b.WriterErr
	}
	w := &Writer{Path: path, Dimensions: dimensions, FPS: fps}
	b.mu.Lock()
	b.writers = append(b.writers, w)
	b.mu.Unlock()
	return w, nil
}

func (b *Backend) Writers() []*Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Writer{}, b.writers...)
}

// Conn is a backend connection which fills every frame it reads with the
// configured dimensions, or fails with ReadErr.
type Conn struct {
	Dimensions videoframe.Dimensions
	ReadErr    error

	uuid   string
	mu     sync.Mutex
	reads  int
	closes int
}

func (c *Conn) UUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.uuid) == 0 {
		c.uuid = uuid.NewString()
	}
	return c.uuid
}

func (c *Conn) Read(frame videoframe.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.ReadErr != nil {
		return c.ReadErr
	}
	f, ok := frame.DataRef().(*Frame)
	if !ok {
		return xerror.New("must pass mock frame to mock connection read")
	}
	f.ID, f.W, f.H = c.reads, c.Dimensions.W, c.Dimensions.H
	return nil
}

func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes == 0
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// FileReader plays back Count frames then reports io.EOF.
type FileReader struct {
	Conn
	Count int
	Rate  float64
}

func (r *FileReader) Read(frame videoframe.Frame) error {
	r.mu.Lock()
	done := r.reads >= r.Count
	r.mu.Unlock()
	if done {
		return io.EOF
	}
	return r.Conn.Read(frame)
}

func (r *FileReader) FPS() float64 { return r.Rate }

func (r *FileReader) Dimensions() videoframe.Dimensions { return r.Conn.Dimensions }

type WrittenFrame struct {
	ID, W, H  int
	Annotated bool
}

// Writer keeps the dimensions and annotation state of every frame written.
type Writer struct {
	Path       string
	Dimensions videoframe.Dimensions
	FPS        float64
	WriteErr   error

	mu      sync.Mutex
	written []WrittenFrame
	closes  int
}

func (w *Writer) Write(frame videoframe.NoCloser) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.WriteErr != nil {
		return w.WriteErr
	}
	f, ok := frame.DataRef().(*Frame)
	if !ok {
		return xerror.New("must pass mock frame to mock writer")
	}
	w.written = append(w.written, WrittenFrame{ID: f.ID, W: f.W, H: f.H, Annotated: f.IsAnnotated()})
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	return nil
}

func (w *Writer) Written() []WrittenFrame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WrittenFrame{}, w.written...)
}

func (w *Writer) Closes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closes
}

// Annotator marks every frame it is given as annotated and remembers the
// detections it was asked to draw.
type Annotator struct {
	mu    sync.Mutex
	calls [][]detect.Detection
}

func (a *Annotator) Annotate(frame videoframe.Frame, detections []detect.Detection) error {
	f, ok := frame.DataRef().(*Frame)
	if !ok {
		return xerror.New("must pass mock frame to mock annotator")
	}
	f.markAnnotated()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, detections)
	return nil
}

func (a *Annotator) Calls() [][]detect.Detection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]detect.Detection{}, a.calls...)
}
