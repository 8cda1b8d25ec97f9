// Package session implements §4.J's MovieSession: the top-level
// start/tick/end state machine, parameter validation, cvar wiring, and
// ownership of every per-session resource (ComputeContext, SharedSurfaces,
// streams, queues).
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lumenforge/capturecore/internal/audio"
	"github.com/lumenforge/capturecore/internal/capture"
	"github.com/lumenforge/capturecore/internal/cvar"
	"github.com/lumenforge/capturecore/internal/engerr"
	"github.com/lumenforge/capturecore/internal/extensions"
	"github.com/lumenforge/capturecore/internal/gpu"
	"github.com/lumenforge/capturecore/internal/hostapi"
	"github.com/lumenforge/capturecore/internal/logging"
	"github.com/lumenforge/capturecore/internal/memguard"
	"github.com/lumenforge/capturecore/internal/video"
)

var log = logging.L("movie-session")

// State is one of the four MovieSession states.
type State int

const (
	Idle State = iota
	Starting
	Running
	Ending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Ending:
		return "Ending"
	default:
		return "Unknown"
	}
}

// Params is everything needed to start a session, resolved from cvars by
// the caller (the CLI harness or the real host's command dispatch).
type Params struct {
	Filename    string
	OutputDir   string
	Width       int
	Height      int
	FPS         int
	SampleMult  int
	Exposure    float32
	Encoder     string
	PixelFormat capture.PixelFormat
	ColorSpace  capture.ColorSpace
	Staging     bool

	X264CRF    int
	X264Preset string
	X264Intra  bool

	AudioOnly         bool
	AudioDisableVideo bool
}

// restoredCvars lists the cvar names MovieSession.Start overrides and must
// restore on End, per §4.J.
var restoredCvars = []string{"host_framerate", "mat_queue_mode", "engine_no_focus_sleep", "snd_mixahead"}

// streamUnit bundles one output's full pipeline pieces that the session
// must tear down together.
type streamUnit struct {
	surface *capture.SharedSurface
	work    *capture.WorkBuffer
	conv    *capture.ConversionStage
	vstream *video.Stream
}

// Session is the single owning value for one recording. Construct with New
// on start, discard on End.
type Session struct {
	mu    sync.Mutex
	state State

	host     hostapi.RenderHost
	registry *cvar.Registry
	extHost  *extensions.Host

	cc           *gpu.ComputeContext
	orchestrator *capture.CaptureOrchestrator
	guard        *memguard.Guard

	streams []*streamUnit
	audio   *audio.Stream

	cvarSnapshot cvar.Snapshot
	outputPath   string
}

// New constructs a session bound to a host and a shared cvar registry. The
// session is Idle until Start succeeds.
func New(host hostapi.RenderHost, registry *cvar.Registry, extHost *extensions.Host) *Session {
	registerHostCvarsIfAbsent(registry)

	s := &Session{host: host, registry: registry, extHost: extHost, state: Idle}
	if extHost != nil {
		extHost.SetRecordingQuery(func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.state == Running
		})
	}
	return s
}

// State reports the current state, safe for concurrent reads.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Idle -> Starting -> Running. Any failure reverts every
// side effect already applied and leaves the session Idle.
func (s *Session) Start(p Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return engerr.New(engerr.Config, "start requested while a session is already active")
	}
	s.state = Starting

	if err := s.doStart(p); err != nil {
		for _, unit := range s.streams {
			unit.vstream.Close()
			_ = unit.surface.Close()
		}
		if s.audio != nil {
			_ = s.audio.Close()
		}
		if s.cc != nil {
			_ = s.cc.Close()
		}
		if s.cvarSnapshot != nil {
			s.registry.Restore(s.cvarSnapshot)
		}
		s.resetLocked()
		return err
	}

	s.state = Running
	log.Info("movie session started", "file", p.Filename, "width", p.Width, "height", p.Height)
	return nil
}

func (s *Session) doStart(p Params) error {
	if err := ValidateFilename(p.Filename); err != nil {
		return engerr.Wrap(engerr.Config, "invalid filename", err)
	}
	info, err := os.Stat(p.OutputDir)
	if p.OutputDir != "" && (err != nil || !info.IsDir()) {
		return engerr.New(engerr.Config, fmt.Sprintf("output directory %q does not exist", p.OutputDir))
	}
	s.outputPath = filepath.Join(p.OutputDir, p.Filename)

	s.cvarSnapshot = s.registry.Save(restoredCvars...)
	_ = s.registry.SetNumber("host_framerate", float64(p.FPS*max(1, p.SampleMult)))
	_ = s.registry.SetNumber("mat_queue_mode", 0)
	_ = s.registry.SetBool("engine_no_focus_sleep", false)
	if p.AudioOnly {
		_ = s.registry.SetNumber("snd_mixahead", 0)
	}

	guard, err := memguard.New(0)
	if err != nil {
		return engerr.Wrap(engerr.Fatal, "memory guard unavailable", err)
	}
	s.guard = guard

	if !p.AudioDisableVideo {
		cc, err := gpu.New("software", gpu.Dims{Width: p.Width, Height: p.Height})
		if err != nil {
			return engerr.Wrap(engerr.Graphics, "compute context creation failed", err)
		}
		s.cc = cc

		samplingCfg := capture.NewSamplingConfig(p.SampleMult, p.Exposure, p.FPS)
		s.orchestrator = capture.NewCaptureOrchestrator(s.host, s.cc, s.guard, samplingCfg)

		unit, err := s.openStream(p)
		if err != nil {
			return err
		}
		s.streams = append(s.streams, unit)
		s.orchestrator.AttachStream(unit.surface, unit.work, unit.conv, unit.vstream, 0)
		s.orchestrator.Start()
	}

	if p.AudioOnly || !p.AudioDisableVideo {
		wavPath := swapExt(s.outputPath, ".wav")
		as, err := audio.Open(wavPath, 1024)
		if err != nil {
			return engerr.Wrap(engerr.Codec, "audio stream open failed", err)
		}
		s.audio = as
	}

	if s.extHost != nil {
		s.extHost.StartMovie()
	}

	return nil
}

func (s *Session) openStream(p Params) (*streamUnit, error) {
	surface, err := capture.Create(p.Width, p.Height)
	if err != nil {
		return nil, engerr.Wrap(engerr.Graphics, "shared surface creation failed", err)
	}

	work := capture.NewWorkBuffer(s.cc.Dims())

	conv, err := capture.NewConversionStage(s.cc, p.PixelFormat, p.ColorSpace, p.Staging)
	if err != nil {
		surface.Close()
		return nil, engerr.Wrap(engerr.Graphics, "conversion stage creation failed", err)
	}

	vcfg := video.Config{
		Path:        s.outputPath,
		Width:       p.Width,
		Height:      p.Height,
		FPS:         p.FPS,
		EncoderName: p.Encoder,
		PixelFormat: p.PixelFormat,
		ColorSpace:  p.ColorSpace,
		X264CRF:     p.X264CRF,
		X264Preset:  p.X264Preset,
		X264Intra:   p.X264Intra,
	}
	vstream, err := video.Open(vcfg, 0)
	if err != nil {
		surface.Close()
		return nil, err
	}

	return &streamUnit{surface: surface, work: work, conv: conv, vstream: vstream}, nil
}

// Tick drives one capture-thread frame, valid only while Running.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	orchestrator := s.orchestrator
	running := s.state == Running
	s.mu.Unlock()

	if !running || orchestrator == nil {
		return nil
	}
	return orchestrator.Tick(ctx)
}

// End transitions Running or Ending -> Idle. Idempotent: a second call is a
// no-op. Drains queues, flushes encoders, writes trailers, restores cvars,
// and joins every worker concurrently.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return nil
	}
	if s.state != Running && s.state != Ending {
		return nil
	}
	s.state = Ending

	if s.orchestrator != nil {
		s.orchestrator.Stop()
	}

	g, _ := errgroup.WithContext(ctx)
	for _, unit := range s.streams {
		unit := unit
		g.Go(func() error {
			unit.vstream.Close()
			return unit.surface.Close()
		})
	}
	if s.audio != nil {
		aud := s.audio
		g.Go(func() error {
			return aud.Close()
		})
	}
	flushErr := g.Wait()

	if s.cc != nil {
		_ = s.cc.Close()
	}

	if s.extHost != nil {
		s.extHost.EndMovie()
	}

	s.registry.Restore(s.cvarSnapshot)

	s.resetLocked()
	log.Info("movie session ended")

	if flushErr != nil {
		log.Warn("error flushing session resources", "error", flushErr)
	}
	return nil
}

func (s *Session) resetLocked() {
	s.state = Idle
	s.streams = nil
	s.audio = nil
	s.cc = nil
	s.orchestrator = nil
	s.guard = nil
	s.cvarSnapshot = nil
	s.outputPath = ""
}

// registerHostCvarsIfAbsent ensures the handful of host-owned cvars this
// session overrides for its duration exist in the registry, since the real
// host engine that would normally own them is out of scope here.
func registerHostCvarsIfAbsent(registry *cvar.Registry) {
	if _, ok := registry.Lookup("host_framerate"); !ok {
		registry.RegisterNumber("host_framerate", 60)
	}
	if _, ok := registry.Lookup("mat_queue_mode"); !ok {
		registry.RegisterNumber("mat_queue_mode", 0)
	}
	if _, ok := registry.Lookup("engine_no_focus_sleep"); !ok {
		registry.RegisterBool("engine_no_focus_sleep", true)
	}
	if _, ok := registry.Lookup("snd_mixahead"); !ok {
		registry.RegisterNumber("snd_mixahead", 0.1)
	}
}

func swapExt(path, newExt string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + newExt
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
