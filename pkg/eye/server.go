// Package eye wires a configured source, detector and the frame processor
// together with the consumers that show or record what it produces.
package eye

import (
	"context"
	"sync"
	"time"

	"github.com/tauraamui/dragoneye/pkg/configdef"
	"github.com/tauraamui/dragoneye/pkg/detect"
	"github.com/tauraamui/dragoneye/pkg/eye/display"
	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/eye/record"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/source"
	"github.com/tauraamui/dragoneye/pkg/video/videobackend"
	"github.com/tauraamui/xerror"
)

const healthCheckInterval = 1 * time.Second

type Server struct {
	values       configdef.Values
	backend      videobackend.Backend
	mu           sync.Mutex
	detector     detect.Detector
	processor    *process.FrameProcessor
	processes    []process.Process
	quit         chan interface{}
	quitOnce     sync.Once
	shutdownOnce sync.Once
	shutdownDone chan interface{}
}

func NewServer(cr configdef.Resolver, backend videobackend.Backend) (*Server, error) {
	values, err := cr.Resolve()
	if err != nil {
		return nil, err
	}
	return NewServerFromValues(values, backend), nil
}

func NewServerFromValues(values configdef.Values, backend videobackend.Backend) *Server {
	return &Server{
		values:       values,
		backend:      backend,
		quit:         make(chan interface{}),
		shutdownDone: make(chan interface{}),
	}
}

func (s *Server) Values() configdef.Values { return s.values }

// Connect opens the source and loads the detector, then starts the frame
// processor. Nothing is left running if it fails.
func (s *Server) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processor != nil {
		return xerror.New("server is already connected")
	}

	log.Info("Opening [%s] source...", s.values.Mode)
	src, err := source.Open(ctx, SourceSettings(s.values), s.backend)
	if err != nil {
		return err
	}

	det, err := NewDetector(s.values.Detector)
	if err != nil {
		src.Close()
		return err
	}

	fp, err := process.Start(src, ProcessSettings(s.values), det, newAnnotator(), s.backend)
	if err != nil {
		src.Close()
		closeDetector(det)
		return err
	}

	log.Info("Connected to source [%s]", src.UUID())
	s.detector, s.processor = det, fp
	return nil
}

// SetupProcesses creates the configured consumers of processed frames.
func (s *Server) SetupProcesses() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processor == nil {
		return xerror.New("server must be connected before setting up processes")
	}

	if s.values.Display.Enabled {
		s.processes = append(s.processes, display.New(s.processor, DisplaySettings(s.values), s.signalQuit))
	}
	if s.values.Record.Enabled {
		settings := RecordSettings(s.values)
		rec, err := record.New(s.processor, s.backend, settings)
		if err != nil {
			return err
		}
		s.processes = append(s.processes, rec)
		if s.values.Record.MaxClipAgeInDays > 0 {
			s.processes = append(s.processes, record.DeleteOldClips(settings.PersistLocation, s.values.Record.MaxClipAgeInDays))
		}
	}
	s.processes = append(s.processes, s.healthCheck())
	return nil
}

func (s *Server) RunProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proc := range s.processes {
		proc.Start()
	}
}

// healthCheck asks the server to quit once detection has failed, the
// processor produces nothing more after that.
func (s *Server) healthCheck() process.Process {
	fp := s.processor
	return process.NewTask(process.TaskSettings{
		Process: func(ctx context.Context) []chan interface{} {
			stopping := make(chan interface{})
			go func() {
				defer close(stopping)
				ticker := time.NewTicker(healthCheckInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := fp.Err(); err != nil {
							log.Error("Frame processing has stopped: %v", err)
							s.signalQuit()
							return
						}
					}
				}
			}()
			return []chan interface{}{stopping}
		},
	})
}

func (s *Server) signalQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Quit is closed when the server can no longer do anything useful, either
// because the viewer closed the display or detection failed.
func (s *Server) Quit() <-chan interface{} {
	return s.quit
}

func (s *Server) Stats() process.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processor == nil {
		return process.Stats{}
	}
	return s.processor.Stats()
}

func (s *Server) shutdownProcesses() {
	wg := sync.WaitGroup{}
	wg.Add(len(s.processes))
	for _, proc := range s.processes {
		go func(wg *sync.WaitGroup, proc process.Process) {
			defer wg.Done()
			proc.Stop()
			proc.Wait()
		}(&wg, proc)
	}
	wg.Wait()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownProcesses()
	if s.processor != nil {
		stats := s.processor.Stats()
		if err := s.processor.Stop(); err != nil {
			log.Error("Frame processor stopped with error: %v", err)
		}
		log.Info(
			"Captured [%d] frames (%d dropped), processed [%d] (%d skipped, %d unread)",
			stats.Captured, stats.CaptureDrops, stats.Processed, stats.Skipped, stats.ProcessedDrops,
		)
	}
	if s.detector != nil {
		closeDetector(s.detector)
	}
	close(s.shutdownDone)
}

// Shutdown stops every consumer before the processor, so nothing reads from
// it once it is gone. The returned channel is closed once all is released.
func (s *Server) Shutdown() chan interface{} {
	s.shutdownOnce.Do(s.shutdown)
	return s.shutdownDone
}

func closeDetector(det detect.Detector) {
	if closer, ok := det.(detect.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("Unable to release detector: %v", err)
		}
	}
}
