package configdef

import (
	"github.com/tauraamui/dragoneye/pkg/config/schedule"
	"github.com/tauraamui/xerror"
	"gopkg.in/dealancer/validate.v2"
)

type Size struct {
	W int `json:"w" validate:"gte=1"`
	H int `json:"h" validate:"gte=1"`
}

type Detector struct {
	// Variant is "box" for axis aligned boxes, "polygon" for oriented boxes.
	Variant       string   `json:"variant" validate:"one_of=box,polygon"`
	Model         string   `json:"model" validate:"empty=false"`
	Config        string   `json:"config"`
	Classes       []string `json:"classes"`
	ClassesFile   string   `json:"classes_file"`
	MinConfidence float64  `json:"min_confidence" validate:"gte=0 & lte=1"`
	NMSThreshold  float64  `json:"nms_threshold" validate:"gte=0 & lte=1"`
	InputSize     int      `json:"input_size" validate:"gte=1"`
	MinArea       int      `json:"min_area" validate:"gte=0"`
}

type Record struct {
	Enabled          bool          `json:"enabled"`
	PersistLoc       string        `json:"persist_location"`
	FPS              int           `json:"fps" validate:"gte=1 & lte=60"`
	SecondsPerClip   int           `json:"seconds_per_clip" validate:"gte=1"`
	Schedule         schedule.Week `json:"schedule"`
	MaxClipAgeInDays int           `json:"max_clip_age_in_days" validate:"gte=0"`
}

type Display struct {
	Enabled   bool   `json:"enabled"`
	Title     string `json:"title"`
	RefreshMS int    `json:"refresh_ms" validate:"gte=1"`
}

type Values struct {
	Debug                  bool     `json:"debug"`
	Mode                   string   `json:"mode" validate:"one_of=camera-stream,local-camera,screen-region,window-region,still-image,mock"`
	StreamAddress          string   `json:"stream_address"`
	CameraIndex            int      `json:"camera_index" validate:"gte=0"`
	MonitorIndex           int      `json:"monitor_index" validate:"gte=0"`
	WindowTitle            string   `json:"window_title"`
	ImagePath              string   `json:"image_path"`
	SkipFactor             int      `json:"skip_factor" validate:"gte=1"`
	TargetSize             Size     `json:"target_size"`
	DisplaySize            Size     `json:"display_size"`
	Resize                 string   `json:"resize" validate:"one_of=stretch,letterbox"`
	AnnotateFullResolution bool     `json:"annotate_full_resolution"`
	StopTimeoutMS          int      `json:"stop_timeout_ms" validate:"gte=0"`
	ProbeTimeoutMS         int      `json:"probe_timeout_ms" validate:"gte=0"`
	Detector               Detector `json:"detector"`
	Record                 Record   `json:"record"`
	Display                Display  `json:"display"`
}

const validationErrorHeader = "validation failed: %w"

// RunValidate checks the struct tags first and then the rules which depend
// on more than one field.
func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.Validate()
}

func (v Values) Validate() error {
	switch {
	case v.Mode == "camera-stream" && len(v.StreamAddress) == 0:
		return xerror.Errorf(validationErrorHeader, xerror.New("stream address is required for camera-stream mode"))
	case v.Mode == "window-region" && len(v.WindowTitle) == 0:
		return xerror.Errorf(validationErrorHeader, xerror.New("window title is required for window-region mode"))
	case v.Mode == "still-image" && len(v.ImagePath) == 0:
		return xerror.Errorf(validationErrorHeader, xerror.New("image path is required for still-image mode"))
	case v.Record.Enabled && len(v.Record.PersistLoc) == 0:
		return xerror.Errorf(validationErrorHeader, xerror.New("persist location is required when recording"))
	case len(v.Detector.Classes) > 0 && len(v.Detector.ClassesFile) > 0:
		return xerror.Errorf(validationErrorHeader, xerror.New("only one of classes and classes file can be set"))
	}
	return nil
}
