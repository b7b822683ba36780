package eye

import (
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/dragoneye/pkg/annotate"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/mocks"
	"github.com/tauraamui/dragoneye/pkg/source"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

type stubResolver struct {
	values configdef.Values
	err    error
}

func (r stubResolver) Resolve() (configdef.Values, error) { return r.values, r.err }

type countingDetector struct {
	mu     sync.Mutex
	err    error
	calls  int
	closes int
}

func (d *countingDetector) Detect(videoframe.NoCloser) ([]detect.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil, d.err
}

func (d *countingDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *countingDetector) closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type ServerTestSuite struct {
	suite.Suite
	values          configdef.Values
	backend         *mocks.Backend
	detector        *countingDetector
	newDetectorRef  func(configdef.Detector) (detect.Detector, error)
	newAnnotatorRef func() annotate.Annotator
}

func (suite *ServerTestSuite) SetupSuite() {
	logging.CurrentLoggingLevel = logging.SilentLevel
	suite.newDetectorRef, suite.newAnnotatorRef = NewDetector, newAnnotator
	newAnnotator = func() annotate.Annotator { return &mocks.Annotator{} }
}

func (suite *ServerTestSuite) TearDownSuite() {
	NewDetector, newAnnotator = suite.newDetectorRef, suite.newAnnotatorRef
	logging.CurrentLoggingLevel = logging.WarnLevel
}

func (suite *ServerTestSuite) SetupTest() {
	image := filepath.Join(suite.T().TempDir(), "aerial.png")
	suite.Require().NoError(imaging.Save(imaging.New(80, 60, color.White), image))

	suite.backend = &mocks.Backend{}
	suite.detector = &countingDetector{}
	NewDetector = func(configdef.Detector) (detect.Detector, error) { return suite.detector, nil }
	suite.values = configdef.Values{
		Mode:        "still-image",
		ImagePath:   image,
		SkipFactor:  1,
		TargetSize:  configdef.Size{W: 32, H: 32},
		DisplaySize: configdef.Size{W: 64, H: 48},
		Resize:      "stretch",
		Record:      configdef.Record{Enabled: true, PersistLoc: "/clips", FPS: 50, SecondsPerClip: 60},
	}
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, &ServerTestSuite{})
}

func (suite *ServerTestSuite) TestNewServerPassesResolverError() {
	server, err := NewServer(stubResolver{err: xerror.New("no config")}, suite.backend)
	assert.Nil(suite.T(), server)
	assert.EqualError(suite.T(), err, "no config")
}

func (suite *ServerTestSuite) TestRecordsProcessedFramesUntilShutdown() {
	server, err := NewServer(stubResolver{values: suite.values}, suite.backend)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), server.Connect(context.Background()))
	require.NoError(suite.T(), server.SetupProcesses())
	server.RunProcesses()

	require.Eventually(suite.T(), func() bool {
		writers := suite.backend.Writers()
		return len(writers) == 1 && len(writers[0].Written()) >= 3
	}, 3*time.Second, 5*time.Millisecond)

	select {
	case <-server.Shutdown():
	case <-time.After(3 * time.Second):
		suite.T().Fatal("shutdown did not finish")
	}

	w := suite.backend.Writers()[0]
	assert.Equal(suite.T(), videoframe.Dimensions{W: 64, H: 48}, w.Dimensions)
	assert.Equal(suite.T(), 1, w.Closes())
	for _, f := range w.Written() {
		assert.True(suite.T(), f.Annotated)
	}
	assert.Equal(suite.T(), 1, suite.detector.closed())
	assert.True(suite.T(), server.Stats().Processed > 0)

	// shutting down twice is harmless
	<-server.Shutdown()
	assert.Equal(suite.T(), 1, suite.detector.closed())
}

func (suite *ServerTestSuite) TestConnectFailsOnBadSource() {
	suite.values.ImagePath = "/does/not/exist.png"
	server := NewServerFromValues(suite.values, suite.backend)

	err := server.Connect(context.Background())
	assert.True(suite.T(), errors.Is(err, source.ErrConfiguration))
	assert.Error(suite.T(), server.SetupProcesses())
	<-server.Shutdown()
}

func (suite *ServerTestSuite) TestConnectReleasesSourceWhenDetectorFails() {
	NewDetector = func(configdef.Detector) (detect.Detector, error) { return nil, xerror.New("no model") }
	server := NewServerFromValues(suite.values, suite.backend)

	assert.EqualError(suite.T(), server.Connect(context.Background()), "no model")
	<-server.Shutdown()
}

func (suite *ServerTestSuite) TestDetectorFailureSignalsQuit() {
	suite.detector.err = xerror.New("model crashed")
	suite.values.Record.Enabled = false
	server := NewServerFromValues(suite.values, suite.backend)
	require.NoError(suite.T(), server.Connect(context.Background()))
	require.NoError(suite.T(), server.SetupProcesses())
	server.RunProcesses()

	select {
	case <-server.Quit():
	case <-time.After(3 * time.Second):
		suite.T().Fatal("server did not ask to quit")
	}
	<-server.Shutdown()
	assert.Equal(suite.T(), 1, suite.detector.closed())
}

func (suite *ServerTestSuite) TestSettingsMapping() {
	suite.values.StopTimeoutMS = 250
	suite.values.Record.SecondsPerClip = 30
	suite.values.Display = configdef.Display{Title: "front", RefreshMS: 20}

	ps := ProcessSettings(suite.values)
	assert.Equal(suite.T(), 250*time.Millisecond, ps.CaptureStopTimeout)
	assert.Equal(suite.T(), videoframe.Dimensions{W: 32, H: 32}, ps.TargetSize)

	ss := SourceSettings(suite.values)
	assert.Equal(suite.T(), source.ModeStillImage, ss.Mode)
	assert.Equal(suite.T(), videoframe.Dimensions{W: 64, H: 48}, ss.DisplaySize)

	assert.Equal(suite.T(), 30*time.Second, RecordSettings(suite.values).ClipLength)
	ds := DisplaySettings(suite.values)
	assert.Equal(suite.T(), 20*time.Millisecond, ds.Refresh)
	assert.Equal(suite.T(), videoframe.Dimensions{W: 64, H: 48}, ds.Size)
}

func TestExpandHome(t *testing.T) {
	userHomeDirRef := userHomeDir
	userHomeDir = func() (string, error) { return "/home/eye", nil }
	defer func() { userHomeDir = userHomeDirRef }()

	assert.Equal(t, "/home/eye/Downloads", expandHome("~/Downloads"))
	assert.Equal(t, "/home/eye", expandHome("~"))
	assert.Equal(t, "/clips", expandHome("/clips"))
	assert.Equal(t, "~user/clips", expandHome("~user/clips"))
}

func TestApplyDebugOnlyRaisesLevelWhenConfigured(t *testing.T) {
	existing, existingLabel := logging.CurrentLoggingLevel, logging.CallbackLabel
	defer func() { logging.CurrentLoggingLevel, logging.CallbackLabel = existing, existingLabel }()

	logging.CurrentLoggingLevel = logging.WarnLevel
	ApplyDebug(configdef.Values{})
	assert.Equal(t, logging.WarnLevel, logging.CurrentLoggingLevel)

	ApplyDebug(configdef.Values{Debug: true})
	assert.Equal(t, logging.DebugLevel, logging.CurrentLoggingLevel)
}
