package videobackend

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoneye/pkg/video/videoclip"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type openCVFrame struct {
	isClosed bool
	mat      gocv.Mat
}

func (frame *openCVFrame) DataRef() interface{} {
	return &frame.mat
}

func (frame *openCVFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: frame.mat.Cols(), H: frame.mat.Rows()}
}

func (frame *openCVFrame) Close() {
	if !frame.isClosed {
		frame.mat.Close()
		frame.isClosed = true
	}
}

type openCVBackend struct{}

func (b *openCVBackend) Connect(cancel context.Context, addr string) (Connection, error) {
	if len(addr) == 0 {
		return nil, xerror.New("connection address is undefined")
	}
	conn := openCVConnection{}
	err := conn.connect(cancel, addr)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (b *openCVBackend) ConnectDevice(cancel context.Context, index int) (Connection, error) {
	if index < 0 {
		return nil, xerror.Errorf("invalid camera device index: %d", index)
	}
	conn := openCVConnection{}
	err := conn.connect(cancel, index)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (b *openCVBackend) OpenFile(path string) (FileReader, error) {
	if _, err := fs.Stat(path); err != nil {
		return nil, xerror.Errorf("unable to open video file %s: %w", path, err)
	}
	conn := openCVConnection{}
	if err := conn.connect(context.Background(), path); err != nil {
		return nil, err
	}
	if !conn.IsOpen() {
		conn.Close()
		return nil, xerror.Errorf("unable to open video file: %s", path)
	}
	return &openCVFileReader{openCVConnection: &conn}, nil
}

func (b *openCVBackend) NewFrame() videoframe.Frame {
	return &openCVFrame{mat: gocv.NewMat()}
}

func (b *openCVBackend) NewFrameFromImage(img image.Image) (videoframe.Frame, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, xerror.Errorf("unable to convert Go image into OpenCV mat: %w", err)
	}
	return &openCVFrame{mat: mat}, nil
}

func (b *openCVBackend) Clone(frame videoframe.NoCloser) (videoframe.Frame, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.New("must pass OpenCV frame to OpenCV clone")
	}
	return &openCVFrame{mat: mat.Clone()}, nil
}

func (b *openCVBackend) Crop(frame videoframe.NoCloser, area image.Rectangle) (videoframe.Frame, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.New("must pass OpenCV frame to OpenCV crop")
	}
	d := frame.Dimensions()
	area = area.Intersect(image.Rect(0, 0, d.W, d.H))
	if area.Empty() {
		return nil, xerror.Errorf("crop area %v is outside of %dx%d frame", area, d.W, d.H)
	}
	region := mat.Region(area)
	defer region.Close()
	return &openCVFrame{mat: region.Clone()}, nil
}

var letterboxPadding = color.RGBA{A: 255}

func (b *openCVBackend) Scale(
	frame videoframe.NoCloser, dst videoframe.Dimensions, mode videoframe.ResizeMode,
) (videoframe.Frame, videoframe.Transform, error) {
	src, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, videoframe.Transform{}, xerror.New("must pass OpenCV frame to OpenCV scaler")
	}
	if !dst.Valid() {
		return nil, videoframe.Transform{}, xerror.Errorf("cannot scale frame to %dx%d", dst.W, dst.H)
	}

	t := videoframe.NewTransform(frame.Dimensions(), dst, mode)
	out := gocv.NewMat()
	if mode != videoframe.ResizeLetterbox {
		gocv.Resize(*src, &out, image.Pt(dst.W, dst.H), 0, 0, gocv.InterpolationLinear)
		return &openCVFrame{mat: out}, t, nil
	}

	content := gocv.NewMat()
	defer content.Close()
	gocv.Resize(*src, &content, t.Content.Size(), 0, 0, gocv.InterpolationLinear)
	gocv.CopyMakeBorder(
		content, &out,
		t.Content.Min.Y, dst.H-t.Content.Max.Y,
		t.Content.Min.X, dst.W-t.Content.Max.X,
		gocv.BorderConstant, letterboxPadding,
	)
	return &openCVFrame{mat: out}, t, nil
}

const codec = "mp4v"

func (b *openCVBackend) NewWriter(path string, dimensions videoframe.Dimensions, fps float64) (videoclip.Writer, error) {
	if !dimensions.Valid() {
		return nil, xerror.Errorf("cannot write video with dimensions %dx%d", dimensions.W, dimensions.H)
	}
	if fps <= 0 {
		return nil, xerror.Errorf("cannot write video at %.2f fps", fps)
	}
	if err := ensureDirectoryPathExists(filepath.Dir(path)); err != nil {
		return nil, err
	}

	vw, err := openVideoWriter(path, codec, fps, dimensions.W, dimensions.H, true)
	if err != nil {
		return nil, err
	}
	return &openCVClipWriter{vw: vw, dimensions: dimensions}, nil
}

var openVideoWriter = func(filename, codec string, fps float64, width, height int, isColor bool) (*gocv.VideoWriter, error) {
	return gocv.VideoWriterFile(filename, codec, fps, width, height, isColor)
}

func ensureDirectoryPathExists(path string) error {
	err := fs.MkdirAll(path, os.ModePerm|os.ModeDir)
	if err == nil || os.IsExist(err) {
		return nil
	}
	return err
}

type openCVClipWriter struct {
	mu         sync.Mutex
	vw         *gocv.VideoWriter
	dimensions videoframe.Dimensions
}

func (w *openCVClipWriter) Write(frame videoframe.NoCloser) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV writer")
	}
	if d := frame.Dimensions(); d != w.dimensions {
		return xerror.Errorf(
			"frame dimensions %dx%d do not match writer dimensions %dx%d",
			d.W, d.H, w.dimensions.W, w.dimensions.H,
		)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.vw == nil {
		return xerror.New("cannot write to closed writer")
	}
	return w.vw.Write(*mat)
}

func (w *openCVClipWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.vw == nil {
		return nil
	}
	err := w.vw.Close()
	w.vw = nil
	return err
}

type openCVConnection struct {
	uuid   string
	mu     sync.Mutex
	isOpen bool
	vc     *gocv.VideoCapture
}

// connect opens device, which is either an address/path or a camera index.
func (c *openCVConnection) connect(cancel context.Context, device interface{}) error {
	connAndError := make(chan openVideoStreamResult, 1)
	go openVideoStream(device, connAndError)
	select {
	case r := <-connAndError:
		if r.err != nil {
			return r.err
		}
		c.vc = r.vc
		c.isOpen = true
		return nil
	case <-cancel.Done():
		// the capture still opening in the background is released once it arrives
		go func() {
			if r := <-connAndError; r.vc != nil {
				r.vc.Close()
			}
		}()
		return xerror.New("connection cancelled")
	}
}

type openVideoStreamResult struct {
	vc  *gocv.VideoCapture
	err error
}

func openVideoStream(device interface{}, d chan openVideoStreamResult) {
	vc, err := openVideoCapture(device)
	d <- openVideoStreamResult{vc: vc, err: err}
}

var openVideoCapture = func(device interface{}) (*gocv.VideoCapture, error) {
	return gocv.OpenVideoCapture(device)
}

var readFromVideoConnection = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	if vc.IsOpened() {
		return vc.Read(mat)
	}
	return false
}

func (c *openCVConnection) UUID() string {
	if len(c.uuid) == 0 {
		c.uuid = uuid.NewString()
	}
	return c.uuid
}

func (c *openCVConnection) Read(frame videoframe.Frame) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV connection read")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return xerror.New("video connection is closed")
	}
	ok = readFromVideoConnection(c.vc, mat)
	if !ok || mat.Empty() {
		return xerror.New("unable to read from video connection")
	}
	return nil
}

func (c *openCVConnection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		return c.vc.IsOpened()
	}
	return false
}

func (c *openCVConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOpen {
		return nil
	}
	c.isOpen = false
	return c.vc.Close()
}

type openCVFileReader struct {
	*openCVConnection
}

func (r *openCVFileReader) FPS() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vc.Get(gocv.VideoCaptureFPS)
}

func (r *openCVFileReader) Dimensions() videoframe.Dimensions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return videoframe.Dimensions{
		W: int(r.vc.Get(gocv.VideoCaptureFrameWidth)),
		H: int(r.vc.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Read treats any failed read as the end of the file.
func (r *openCVFileReader) Read(frame videoframe.Frame) error {
	if err := r.openCVConnection.Read(frame); err != nil {
		if _, ok := frame.DataRef().(*gocv.Mat); !ok {
			return err
		}
		return io.EOF
	}
	return nil
}
