package configdef_test

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

const validBody = `{
	"mode": "mock",
	"skip_factor": 3,
	"target_size": {"w": 320, "h": 320},
	"display_size": {"w": 1280, "h": 960},
	"resize": "stretch",
	"detector": {"variant": "box", "model": "yolov8n.onnx", "min_confidence": 0.4, "nms_threshold": 0.45, "input_size": 640},
	"record": {"fps": 15, "seconds_per_clip": 60},
	"display": {"enabled": true, "refresh_ms": 15}
}`

func validValues(t *testing.T) configdef.Values {
	config := configdef.Values{}
	is.New(t).NoErr(json.Unmarshal([]byte(validBody), &config))
	return config
}

func TestValidatePopulatedConfigPassesValidation(t *testing.T) {
	is := is.New(t)
	is.NoErr(validValues(t).RunValidate())
}

func TestValidateFailsOnStructTags(t *testing.T) {
	tests := []struct {
		title  string
		modify func(*configdef.Values)
		err    string
	}{
		{
			title:  "skip factor below one",
			modify: func(v *configdef.Values) { v.SkipFactor = 0 },
			err:    `Validation error in field "SkipFactor" of type "int" using validator "gte=1"`,
		},
		{
			title:  "unknown mode",
			modify: func(v *configdef.Values) { v.Mode = "satellite" },
			err:    `Validation error in field "Mode" of type "string" using validator "one_of=camera-stream,local-camera,screen-region,window-region,still-image,mock"`,
		},
		{
			title:  "unknown resize mode",
			modify: func(v *configdef.Values) { v.Resize = "squash" },
			err:    `Validation error in field "Resize" of type "string" using validator "one_of=stretch,letterbox"`,
		},
		{
			title:  "zero width target",
			modify: func(v *configdef.Values) { v.TargetSize.W = 0 },
			err:    `Validation error in field "W" of type "int" using validator "gte=1"`,
		},
		{
			title:  "confidence above one",
			modify: func(v *configdef.Values) { v.Detector.MinConfidence = 1.5 },
			err:    `Validation error in field "MinConfidence" of type "float64" using validator "lte=1"`,
		},
		{
			title:  "record fps above sixty",
			modify: func(v *configdef.Values) { v.Record.FPS = 61 },
			err:    `Validation error in field "FPS" of type "int" using validator "lte=60"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			is := is.New(t)
			config := validValues(t)
			tt.modify(&config)
			err := config.RunValidate()
			is.True(err != nil)
			is.Equal(err.Error(), tt.err)
		})
	}
}

func TestValidateFailsOnModeRequirements(t *testing.T) {
	tests := []struct {
		title  string
		modify func(*configdef.Values)
		err    string
	}{
		{
			title:  "camera stream without address",
			modify: func(v *configdef.Values) { v.Mode = "camera-stream" },
			err:    "validation failed: stream address is required for camera-stream mode",
		},
		{
			title:  "window region without title",
			modify: func(v *configdef.Values) { v.Mode = "window-region" },
			err:    "validation failed: window title is required for window-region mode",
		},
		{
			title:  "still image without path",
			modify: func(v *configdef.Values) { v.Mode = "still-image" },
			err:    "validation failed: image path is required for still-image mode",
		},
		{
			title:  "recording without persist location",
			modify: func(v *configdef.Values) { v.Record.Enabled = true },
			err:    "validation failed: persist location is required when recording",
		},
		{
			title: "classes given twice",
			modify: func(v *configdef.Values) {
				v.Detector.Classes = []string{"car"}
				v.Detector.ClassesFile = "coco.names"
			},
			err: "validation failed: only one of classes and classes file can be set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			is := is.New(t)
			config := validValues(t)
			tt.modify(&config)
			is.Equal(config.RunValidate().Error(), tt.err)
		})
	}
}

func TestValidateAcceptsModeRequirementsWhenMet(t *testing.T) {
	is := is.New(t)
	config := validValues(t)
	config.Mode = "window-region"
	config.WindowTitle = "Firefox"
	is.NoErr(config.RunValidate())
}
