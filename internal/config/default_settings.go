package config

import (
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

type defaultSettingKey uint

const (
	MODE defaultSettingKey = iota
	SKIPFACTOR
	TARGETSIZE
	DISPLAYSIZE
	RESIZE
	PROBETIMEOUTMS
	DETECTOR
	RECORD
	DISPLAY
)

var defaultSettings = map[defaultSettingKey]interface{}{
	MODE:           "local-camera",
	SKIPFACTOR:     3,
	TARGETSIZE:     configdef.Size{W: 320, H: 320},
	DISPLAYSIZE:    configdef.Size{W: 1280, H: 960},
	RESIZE:         "stretch",
	PROBETIMEOUTMS: 3000,
	DETECTOR: configdef.Detector{
		Variant:       "box",
		Model:         "yolov8n.onnx",
		MinConfidence: 0.4,
		NMSThreshold:  0.45,
		InputSize:     640,
	},
	RECORD: configdef.Record{
		PersistLoc:       "~/Downloads/dragoneye",
		FPS:              15,
		SecondsPerClip:   120,
		MaxClipAgeInDays: 30,
	},
	DISPLAY: configdef.Display{Enabled: true, Title: "dragoneye", RefreshMS: 15},
}

func defaultValues() configdef.Values {
	return configdef.Values{
		Mode:           defaultSettings[MODE].(string),
		SkipFactor:     defaultSettings[SKIPFACTOR].(int),
		TargetSize:     defaultSettings[TARGETSIZE].(configdef.Size),
		DisplaySize:    defaultSettings[DISPLAYSIZE].(configdef.Size),
		Resize:         defaultSettings[RESIZE].(string),
		ProbeTimeoutMS: defaultSettings[PROBETIMEOUTMS].(int),
		Detector:       defaultSettings[DETECTOR].(configdef.Detector),
		Record:         defaultSettings[RECORD].(configdef.Record),
		Display:        defaultSettings[DISPLAY].(configdef.Display),
	}
}
