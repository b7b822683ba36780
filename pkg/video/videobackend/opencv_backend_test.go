package videobackend

import (
	"context"
	"image"
	"io"
	"testing"

	"github.com/matryer/is"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

func overloadOpenVidCap(overload func(device interface{}) (*gocv.VideoCapture, error)) func() {
	openVidCapRef := openVideoCapture
	openVideoCapture = overload
	return func() { openVideoCapture = openVidCapRef }
}

func overloadReadFromVidCap(overload func(vc *gocv.VideoCapture, mat *gocv.Mat) bool) func() {
	readFromVidCapRef := readFromVideoConnection
	readFromVideoConnection = overload
	return func() { readFromVideoConnection = readFromVidCapRef }
}

func overloadOpenVideoWriter(overload func(filename, codec string, fps float64, width, height int, isColor bool) (*gocv.VideoWriter, error)) func() {
	openVidWriterRef := openVideoWriter
	openVideoWriter = overload
	return func() { openVideoWriter = openVidWriterRef }
}

func overloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func TestOpenVideoStreamInvokesOpenVideoCapture(t *testing.T) {
	is := is.New(t)
	var opened interface{}
	resetOpenVidCap := overloadOpenVidCap(
		func(device interface{}) (*gocv.VideoCapture, error) {
			opened = device
			return nil, xerror.New("test connect error")
		},
	)
	defer resetOpenVidCap()

	conn := openCVConnection{}
	is.Equal(conn.connect(context.TODO(), "TestAddr").Error(), "test connect error")
	is.Equal(opened, "TestAddr")
}

func TestConnectDevicePassesIndexToOpenVideoCapture(t *testing.T) {
	is := is.New(t)
	var opened interface{}
	resetOpenVidCap := overloadOpenVidCap(
		func(device interface{}) (*gocv.VideoCapture, error) {
			opened = device
			return nil, xerror.New("no such device")
		},
	)
	defer resetOpenVidCap()

	backend := openCVBackend{}
	conn, err := backend.ConnectDevice(context.TODO(), 2)
	is.True(conn == nil)
	is.Equal(err.Error(), "no such device")
	is.Equal(opened, 2)
}

func TestConnectDeviceRejectsNegativeIndex(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	_, err := backend.ConnectDevice(context.TODO(), -1)
	is.Equal(err.Error(), "invalid camera device index: -1")
}

func TestConnectRejectsEmptyAddress(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	_, err := backend.Connect(context.TODO(), "")
	is.Equal(err.Error(), "connection address is undefined")
}

func TestConnectWithImmediateCancelInvoke(t *testing.T) {
	is := is.New(t)
	release := make(chan struct{})
	resetOpenVidCap := overloadOpenVidCap(
		func(device interface{}) (*gocv.VideoCapture, error) {
			<-release
			return nil, xerror.New("released")
		},
	)
	defer resetOpenVidCap()
	defer close(release)

	conn := openCVConnection{}
	ctx, cancel := context.WithCancel(context.TODO())
	errChan := make(chan error)
	go func(ctx context.Context) {
		errChan <- conn.connect(ctx, "TestAddr")
	}(ctx)
	cancel()

	connErr := <-errChan
	is.Equal(connErr.Error(), "connection cancelled")
}

func TestConnectionReadFailureReturnsError(t *testing.T) {
	is := is.New(t)
	resetReadFromVidCap := overloadReadFromVidCap(func(*gocv.VideoCapture, *gocv.Mat) bool { return false })
	defer resetReadFromVidCap()

	backend := openCVBackend{}
	frame := backend.NewFrame()
	defer frame.Close()

	conn := openCVConnection{isOpen: true}
	is.Equal(conn.Read(frame).Error(), "unable to read from video connection")
}

func TestClosedConnectionReadReturnsError(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	frame := backend.NewFrame()
	defer frame.Close()

	conn := openCVConnection{}
	is.Equal(conn.Read(frame).Error(), "video connection is closed")
	is.NoErr(conn.Close())
}

func TestFileReaderReportsEndOfFile(t *testing.T) {
	is := is.New(t)
	resetReadFromVidCap := overloadReadFromVidCap(func(*gocv.VideoCapture, *gocv.Mat) bool { return false })
	defer resetReadFromVidCap()

	backend := openCVBackend{}
	frame := backend.NewFrame()
	defer frame.Close()

	reader := openCVFileReader{openCVConnection: &openCVConnection{isOpen: true}}
	is.Equal(reader.Read(frame), io.EOF)
}

func TestOpenFileMissingReturnsError(t *testing.T) {
	resetFS := overloadFS(afero.NewMemMapFs())
	defer resetFS()

	backend := openCVBackend{}
	reader, err := backend.OpenFile("/testroot/missing.mp4")
	assert.Nil(t, reader)
	assert.Contains(t, err.Error(), "unable to open video file /testroot/missing.mp4")
}

func TestNewWriterCreatesParentDirectory(t *testing.T) {
	memFS := afero.NewMemMapFs()
	resetFS := overloadFS(memFS)
	defer resetFS()

	var openedWith string
	var openedFPS float64
	resetOpenWriter := overloadOpenVideoWriter(
		func(filename, codec string, fps float64, width, height int, isColor bool) (*gocv.VideoWriter, error) {
			openedWith = filename
			openedFPS = fps
			return nil, xerror.New("test writer error")
		},
	)
	defer resetOpenWriter()

	backend := openCVBackend{}
	w, err := backend.NewWriter("/testroot/out/clip.mp4", videoframe.Dimensions{W: 640, H: 480}, 30)
	require.EqualError(t, err, "test writer error")
	assert.Nil(t, w)
	assert.Equal(t, "/testroot/out/clip.mp4", openedWith)
	assert.Equal(t, 30.0, openedFPS)

	exists, err := afero.DirExists(memFS, "/testroot/out")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewWriterRejectsInvalidSettings(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}

	_, err := backend.NewWriter("out.mp4", videoframe.Dimensions{}, 30)
	is.Equal(err.Error(), "cannot write video with dimensions 0x0")

	_, err = backend.NewWriter("out.mp4", videoframe.Dimensions{W: 1, H: 1}, 0)
	is.Equal(err.Error(), "cannot write video at 0.00 fps")
}

func TestClosedWriterRefusesFrames(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	frame := backend.NewFrame()
	defer frame.Close()

	w := openCVClipWriter{}
	is.NoErr(w.Close())
	is.Equal(w.Write(frame).Error(), "cannot write to closed writer")
}

func whiteFrame(w, h int) videoframe.Frame {
	return &openCVFrame{
		mat: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3),
	}
}

func TestScaleStretchResizesBothAxes(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	src := whiteFrame(640, 480)
	defer src.Close()

	scaled, tr, err := backend.Scale(src, videoframe.Dimensions{W: 320, H: 320}, videoframe.ResizeStretch)
	is.NoErr(err)
	defer scaled.Close()

	is.Equal(scaled.Dimensions(), videoframe.Dimensions{W: 320, H: 320})
	is.Equal(tr.ScaleX, 0.5)
	is.Equal(src.Dimensions(), videoframe.Dimensions{W: 640, H: 480})
}

func TestScaleLetterboxPadsOutsideContent(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	src := whiteFrame(640, 480)
	defer src.Close()

	scaled, tr, err := backend.Scale(src, videoframe.Dimensions{W: 320, H: 320}, videoframe.ResizeLetterbox)
	is.NoErr(err)
	defer scaled.Close()

	is.Equal(scaled.Dimensions(), videoframe.Dimensions{W: 320, H: 320})
	is.Equal(tr.OffsetY, 40.0)

	mat := scaled.DataRef().(*gocv.Mat)
	is.Equal(mat.GetVecbAt(0, 160)[0], uint8(0))
	is.Equal(mat.GetVecbAt(160, 160)[0], uint8(255))
	is.Equal(mat.GetVecbAt(319, 160)[0], uint8(0))
}

func TestScaleRejectsInvalidTarget(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	src := whiteFrame(10, 10)
	defer src.Close()

	_, _, err := backend.Scale(src, videoframe.Dimensions{}, videoframe.ResizeStretch)
	is.Equal(err.Error(), "cannot scale frame to 0x0")
}

func TestCloneOutlivesOriginal(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	src := whiteFrame(20, 10)

	clone, err := backend.Clone(src)
	is.NoErr(err)
	defer clone.Close()
	src.Close()
	src.Close()

	is.Equal(clone.Dimensions(), videoframe.Dimensions{W: 20, H: 10})
}

func TestMockConnectionRendersSyntheticFrames(t *testing.T) {
	is := is.New(t)
	backend := Mock()
	conn, err := backend.Connect(context.TODO(), "front door")
	is.NoErr(err)
	is.True(len(conn.UUID()) > 0)

	frame := backend.NewFrame()
	defer frame.Close()
	is.NoErr(conn.Read(frame))
	is.Equal(frame.Dimensions(), MockFrameDimensions)

	is.NoErr(conn.Close())
	is.True(!conn.IsOpen())
	is.Equal(conn.Read(frame).Error(), "mock video connection is closed")
}

func TestCropCopiesRegion(t *testing.T) {
	is := is.New(t)
	backend := openCVBackend{}
	src := whiteFrame(320, 320)
	defer src.Close()

	cropped, err := backend.Crop(src, image.Rect(0, 40, 320, 280))
	is.NoErr(err)
	defer cropped.Close()
	is.Equal(cropped.Dimensions(), videoframe.Dimensions{W: 320, H: 240})

	_, err = backend.Crop(src, image.Rect(400, 400, 500, 500))
	is.True(err != nil)
}
