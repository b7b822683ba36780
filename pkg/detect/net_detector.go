package detect

import (
	"bufio"
	"bytes"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

var fs = afero.NewOsFs()

type Variant string

const (
	// VariantBox is a regular detection model producing axis aligned boxes.
	VariantBox     Variant = "box"
	// VariantPolygon is an oriented bounding box model, used for aerial
	// imagery, producing four cornered polygons.
	VariantPolygon Variant = "polygon"
)

func (v Variant) Valid() bool { return v == VariantBox || v == VariantPolygon }

type Settings struct {
	Variant       Variant
	Model         string
	Config        string
	Classes       []string
	ClassesFile   string
	InputSize     int
	MinConfidence float64
	NMSThreshold  float64
}

const (
	defaultInputSize    = 640
	defaultNMSThreshold = 0.45
)

// netDetector runs a DNN model through OpenCV. A single instance is created
// per process and handed to whoever needs it, calls are serialised since an
// OpenCV net is not safe for concurrent forward passes.
type netDetector struct {
	mu          sync.Mutex
	net         gocv.Net
	outputNames []string
	decoder     decoder
	nms         float32
	closed      bool
}

// New loads the model described by settings. Darknet models are recognised by
// the presence of a config file, everything else is read as an ONNX export
// with the ultralytics output layout.
func New(settings Settings) (Detector, error) {
	if !settings.Variant.Valid() {
		return nil, xerror.Errorf("unknown detector variant: %s", settings.Variant)
	}
	if len(settings.Model) == 0 {
		return nil, xerror.New("detector model path is undefined")
	}

	classes := settings.Classes
	if len(classes) == 0 && len(settings.ClassesFile) > 0 {
		loaded, err := loadClasses(settings.ClassesFile)
		if err != nil {
			return nil, err
		}
		classes = loaded
	}

	lay := layoutUltralytics
	switch {
	case settings.Variant == VariantPolygon:
		lay = layoutUltralyticsOriented
	case len(settings.Config) > 0:
		lay = layoutDarknet
	}

	net, err := readNet(settings.Model, settings.Config)
	if err != nil {
		return nil, err
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerror.Errorf("unable to set detector backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerror.Errorf("unable to set detector target: %w", err)
	}

	inputSize := settings.InputSize
	if inputSize <= 0 {
		inputSize = defaultInputSize
	}
	nms := settings.NMSThreshold
	if nms <= 0 {
		nms = defaultNMSThreshold
	}

	log.Info("Loaded [%s] detector model: %s", settings.Variant, filepath.Base(settings.Model))
	return &netDetector{
		net:         net,
		outputNames: outputLayerNames(&net),
		decoder: decoder{
			layout: lay, classes: classes, inputSize: inputSize, minScore: settings.MinConfidence,
		},
		nms: float32(nms),
	}, nil
}

var readNet = func(model, config string) (gocv.Net, error) {
	var net gocv.Net
	if len(config) > 0 {
		net = gocv.ReadNet(model, config)
	} else {
		net = gocv.ReadNetFromONNX(model)
	}
	if net.Empty() {
		return net, xerror.Errorf("unable to read detector model: %s", model)
	}
	return net, nil
}

func outputLayerNames(net *gocv.Net) []string {
	var names []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		names = append(names, layer.GetName())
		layer.Close()
	}
	return names
}

func loadClasses(path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerror.Errorf("unable to read classes file: %w", err)
	}
	var classes []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); len(line) > 0 {
			classes = append(classes, line)
		}
	}
	return classes, scanner.Err()
}

func (d *netDetector) Detect(frame videoframe.NoCloser) ([]Detection, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.Errorf("must pass OpenCV frame to OpenCV detector: %w", ErrDetector)
	}
	if mat.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, xerror.Errorf("detector is closed: %w", ErrDetector)
	}

	size := d.decoder.inputSize
	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	dec := d.decoder
	dec.frame = frame.Dimensions()

	var candidates []candidate
	for _, out := range outputs {
		rows, err := d.rowsOf(out)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, dec.decode(rows)...)
	}
	return suppress(candidates, d.nms), nil
}

// rowsOf converts a network output into one slice per candidate.
func (d *netDetector) rowsOf(out gocv.Mat) ([][]float32, error) {
	if d.decoder.layout == layoutDarknet {
		return matRows(out), nil
	}

	// ultralytics exports are [1, attributes, candidates]
	dims := out.Size()
	if len(dims) != 3 {
		return nil, xerror.Errorf("unexpected detector output shape %v: %w", dims, ErrDetector)
	}
	flat := out.Reshape(1, dims[1])
	defer flat.Close()
	transposed := gocv.NewMat()
	defer transposed.Close()
	gocv.Transpose(flat, &transposed)
	return matRows(transposed), nil
}

func matRows(m gocv.Mat) [][]float32 {
	rows := make([][]float32, 0, m.Rows())
	for r := 0; r < m.Rows(); r++ {
		row := make([]float32, m.Cols())
		for c := 0; c < m.Cols(); c++ {
			row[c] = m.GetFloatAt(r, c)
		}
		rows = append(rows, row)
	}
	return rows
}

func suppress(candidates []candidate, threshold float32) []Detection {
	if len(candidates) == 0 {
		return nil
	}
	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.bounds
		scores[i] = c.score
	}
	keep := gocv.NMSBoxes(boxes, scores, 0, threshold)
	detections := make([]Detection, 0, len(keep))
	for _, i := range keep {
		detections = append(detections, candidates[i].detection)
	}
	return detections
}

func (d *netDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}
