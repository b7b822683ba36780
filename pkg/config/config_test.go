package config_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tauraamui/dragoneye/pkg/config"
	"github.com/tauraamui/dragoneye/pkg/configdef"
)

var _ = Describe("Config", func() {
	var (
		configDir  string
		configPath string
	)

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "dragoneye-config")
		Expect(err).To(BeNil())
		configDir = dir
		configPath = filepath.Join(configDir, "nested", "config.json")
		os.Setenv("DRAGON_EYE_CONFIG", configPath)
	})

	AfterEach(func() {
		os.Unsetenv("DRAGON_EYE_CONFIG")
		os.RemoveAll(configDir)
	})

	Describe("Setting up", func() {
		It("Should write a default config which then resolves", func() {
			Expect(config.DefaultCreator().Create()).To(BeNil())
			Expect(configPath).To(BeAnExistingFile())

			values, err := config.DefaultResolver().Resolve()
			Expect(err).To(BeNil())
			Expect(values.Mode).To(Equal("local-camera"))
			Expect(values.SkipFactor).To(Equal(3))
			Expect(values.TargetSize).To(Equal(configdef.Size{W: 320, H: 320}))
			Expect(values.Display.Enabled).To(BeTrue())
		})

		It("Should refuse to overwrite an existing config", func() {
			resolver := config.DefaultCreateResolver()
			Expect(resolver.Create()).To(BeNil())
			err := resolver.Create()
			Expect(errors.Is(err, configdef.ErrConfigAlreadyExists)).To(BeTrue())
		})
	})

	Describe("Loading config", func() {
		Context("From valid config JSON", func() {
			It("Should load values over the defaults", func() {
				Expect(os.MkdirAll(filepath.Dir(configPath), os.ModePerm)).To(Succeed())
				Expect(os.WriteFile(configPath, []byte(`{
					"mode": "screen-region",
					"monitor_index": 2,
					"record": {
						"enabled": true,
						"persist_location": "/testroot/clips",
						"fps": 20,
						"seconds_per_clip": 30,
						"schedule": {"monday": {"on": "08:00:00", "off": "19:00:00"}}
					}
				}`), 0666)).To(Succeed())

				values, err := config.DefaultResolver().Resolve()
				Expect(err).To(BeNil())
				Expect(values.Mode).To(Equal("screen-region"))
				Expect(values.MonitorIndex).To(Equal(2))
				Expect(values.Record.FPS).To(Equal(20))
				Expect(values.Record.MaxClipAgeInDays).To(Equal(30))
				Expect(values.Record.Schedule.Monday.On.String()).To(Equal("08:00:00"))
				Expect(values.Detector.Model).To(Equal("yolov8n.onnx"))
			})
		})

		Context("From config validation failure", func() {
			It("Should return the validation error", func() {
				Expect(os.MkdirAll(filepath.Dir(configPath), os.ModePerm)).To(Succeed())
				Expect(os.WriteFile(configPath, []byte(`{"skip_factor": 0}`), 0666)).To(Succeed())

				_, err := config.DefaultResolver().Resolve()
				Expect(err).To(MatchError(
					"Validation error in field \"SkipFactor\" of type \"int\" using validator \"gte=1\"",
				))
			})
		})
	})

	Describe("Removing setup", func() {
		It("Should delete the config file", func() {
			Expect(config.DefaultCreator().Create()).To(BeNil())
			Expect(config.DefaultDestroyer().Destroy()).To(BeNil())
			Expect(configPath).ToNot(BeAnExistingFile())
		})
	})
})
