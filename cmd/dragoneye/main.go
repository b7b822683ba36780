package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/dragoneye/pkg/config"
	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/dragoneye/pkg/eye"
	"github.com/tauraamui/dragoneye/pkg/eye/offline"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

const (
	name        = "dragon_eye"
	description = "Dragon eye service which runs object detection over live video"
	usage       = "Usage: dragoneye setup | remove-setup | install | remove | start | stop | status | live | convert <video> [output] | still <image> [output]"
)

type Service struct {
	daemon.Daemon
}

// Setup writes a default config file to the resolved config location.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up dragoneye service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for dragoneye service...")
	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

func (service *Service) Manage() (string, error) {
	if len(os.Args) > 1 {
		command := os.Args[1]
		switch command {
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		case "live":
			return runLive()
		case "convert":
			return convert(os.Args[2:])
		case "still":
			return still(os.Args[2:])
		default:
			return usage, nil
		}
	}

	return runLive()
}

func resolveBackend() videobackend.Backend {
	return videobackend.Resolve(os.Getenv("DRAGON_EYE_VIDEO_BACKEND"))
}

func runLive() (string, error) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting dragon eye...")

	server, err := eye.NewServer(config.DefaultResolver(), resolveBackend())
	if err != nil {
		return "", err
	}
	eye.ApplyDebug(server.Values())

	ctx, cancelStartup := context.WithCancel(context.Background())
	startupErr := make(chan error, 1)
	go func() { startupErr <- startupServer(ctx, server) }()

	select {
	case killSignal := <-interrupt:
		fmt.Print("\r")
		log.Error("Received signal: %s", killSignal)
	case <-server.Quit():
		log.Info("Server asked to quit")
	case err = <-startupErr:
		if err == nil {
			select {
			case killSignal := <-interrupt:
				fmt.Print("\r")
				log.Error("Received signal: %s", killSignal)
			case <-server.Quit():
				log.Info("Server asked to quit")
			}
		}
	}

	cancelStartup()
	log.Info("Shutting down server...")
	<-server.Shutdown()

	var b bytes.Buffer
	gocv.MatProfile.WriteTo(&b, 1)
	log.Debug("Open mats at shutdown: %d\n%s", gocv.MatProfile.Count(), b.String())

	if err != nil {
		return "", err
	}
	return "Shutdown successful... BYE! 👋", nil
}

func startupServer(ctx context.Context, server *eye.Server) error {
	if err := server.Connect(ctx); err != nil {
		return err
	}
	if err := server.SetupProcesses(); err != nil {
		return err
	}
	server.RunProcesses()
	return nil
}

func inputAndOutput(args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", xerror.New(usage)
	}
	if len(args) > 1 {
		return args[0], args[1], nil
	}
	return args[0], "", nil
}

func convert(args []string) (string, error) {
	in, out, err := inputAndOutput(args)
	if err != nil {
		return "", err
	}
	values, err := config.DefaultResolver().Resolve()
	if err != nil {
		return "", err
	}
	eye.ApplyDebug(values)
	det, err := eye.NewDetector(values.Detector)
	if err != nil {
		return "", err
	}
	if closer, ok := det.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
	}()

	backend := resolveBackend()
	report, err := offline.ProcessFile(ctx, backend, eye.NewStage(values, det, backend), in, out)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %d frames to %s", report.Frames, report.Output), nil
}

func still(args []string) (string, error) {
	in, out, err := inputAndOutput(args)
	if err != nil {
		return "", err
	}
	values, err := config.DefaultResolver().Resolve()
	if err != nil {
		return "", err
	}
	eye.ApplyDebug(values)
	det, err := eye.NewDetector(values.Detector)
	if err != nil {
		return "", err
	}
	if closer, ok := det.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	backend := resolveBackend()
	size := eye.SourceSettings(values).DisplaySize
	report, err := offline.ProcessImage(backend, eye.NewStage(values, det, backend), in, out, size)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote annotated image to %s", report.Output), nil
}

func init() {
	log.SetLevelFromString(os.Getenv("DRAGON_EYE_LOGGING_LEVEL"))
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	logging.Info(status) //nolint
}
