// Package hostapi declares the interfaces the core consumes from its
// deliberately-out-of-scope collaborators: the host rendering engine, its
// audio mix, and a wall clock. Nothing in this package is implemented here —
// a real embedding binds these to the actual game/engine process; tests and
// the CLI's smoke-test harness bind them to fakes.
package hostapi

import "context"

// RenderHost is the host rendering engine's surface: a device handle, the
// current backbuffer, and the signals CaptureOrchestrator's tick needs
// before it may run (loading screen, console visibility).
type RenderHost interface {
	// DeviceHandle returns an opaque handle to the render device, passed
	// through to extensions via ImportData.
	DeviceHandle() uintptr
	// Backbuffer returns the current frame's rasterized BGRA8 bytes,
	// row-pitch contiguous, width*height*4 long.
	Backbuffer() ([]byte, error)
	// IsLoadingScreen reports whether the host is currently drawing a
	// loading screen, in which case the tick is a no-op.
	IsLoadingScreen() bool
	// IsConsoleVisible reports whether the host's developer console is
	// currently visible, in which case the tick is a no-op.
	IsConsoleVisible() bool
}

// AudioSource is the host's audio-mix output. Nothing in this module
// subscribes to it; audio.Stream receives PCM only through its Enqueue
// method.
type AudioSource interface {
	// Subscribe registers a callback invoked with each raw PCM16 sample
	// buffer as the host mixes it; the returned cancel func detaches it.
	Subscribe(ctx context.Context, onSamples func([]byte)) (cancel func())
}

// WallClock abstracts wall-clock queries so tests can inject deterministic
// time. No type in this module consumes it; ImportData has no wall-clock
// query.
type WallClock interface {
	NowUnixNano() int64
}
