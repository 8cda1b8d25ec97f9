package capture

import (
	"context"
	"sync"
	"testing"

	"github.com/lumenforge/capturecore/internal/gpu"
)

type fakeHost struct {
	width, height int
	loading       bool
	console       bool
	frame         []byte
}

func (h *fakeHost) DeviceHandle() uintptr { return 0 }
func (h *fakeHost) Backbuffer() ([]byte, error) {
	out := make([]byte, len(h.frame))
	copy(out, h.frame)
	return out, nil
}
func (h *fakeHost) IsLoadingScreen() bool  { return h.loading }
func (h *fakeHost) IsConsoleVisible() bool { return h.console }

func newFakeHost(w, h int) *fakeHost {
	frame := make([]byte, w*h*4)
	for i := range frame {
		frame[i] = 255
	}
	return &fakeHost{width: w, height: h, frame: frame}
}

type fakeSink struct {
	mu       sync.Mutex
	received []FrameItem
	cap      int
}

func newFakeSink(capacity int) *fakeSink { return &fakeSink{cap: capacity} }

func (s *fakeSink) TryEnqueue(item FrameItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cap > 0 && len(s.received) >= s.cap {
		return false
	}
	s.received = append(s.received, item)
	return true
}

func (s *fakeSink) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func newTestOrchestrator(t *testing.T, w, h int, cfg SamplingConfig) (*CaptureOrchestrator, *fakeHost, *fakeSink) {
	t.Helper()
	host := newFakeHost(w, h)
	dims := gpu.Dims{Width: w, Height: h}
	cc, err := gpu.New("software", dims)
	if err != nil {
		t.Fatalf("gpu.New() error = %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	o := NewCaptureOrchestrator(host, cc, nil, cfg)

	surface, err := Create(w, h)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { surface.Close() })

	work := NewWorkBuffer(dims)
	conv, err := NewConversionStage(cc, PixelFormatBGR0, ColorSpaceBT709, true)
	if err != nil {
		t.Fatalf("NewConversionStage() error = %v", err)
	}

	sink := newFakeSink(0)
	o.AttachStream(surface, work, conv, sink, 0)
	o.Start()
	return o, host, sink
}

func TestTickNoOpBeforeStart(t *testing.T) {
	host := newFakeHost(2, 2)
	dims := gpu.Dims{Width: 2, Height: 2}
	cc, _ := gpu.New("software", dims)
	defer cc.Close()
	o := NewCaptureOrchestrator(host, cc, nil, SamplingConfig{})
	// Deliberately not calling o.Start().
	if err := o.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
}

func TestTickNoOpDuringLoadingScreenOrConsole(t *testing.T) {
	o, host, sink := newTestOrchestrator(t, 2, 2, SamplingConfig{Enabled: false})

	host.loading = true
	o.Tick(context.Background())
	if sink.count() != 0 {
		t.Fatalf("loading-screen tick enqueued %d frames, want 0", sink.count())
	}

	host.loading = false
	host.console = true
	o.Tick(context.Background())
	if sink.count() != 0 {
		t.Fatalf("console-visible tick enqueued %d frames, want 0", sink.count())
	}
}

// TestFirstTickIsBlitOnlyRegardlessOfMode covers the resolved Open Question:
// the very first captured tick never encodes, whether or not sampling is
// enabled.
func TestFirstTickIsBlitOnlyRegardlessOfMode(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		cfg := SamplingConfig{Enabled: enabled, Exposure: 1.0, TimePerFrame: 1.0 / 60, TimePerSample: 1.0 / 60}
		o, _, sink := newTestOrchestrator(t, 2, 2, cfg)

		if err := o.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		if sink.count() != 0 {
			t.Fatalf("enabled=%v: first tick enqueued %d frames, want 0", enabled, sink.count())
		}
	}
}

func TestPassThroughEmitsEveryTickAfterFirst(t *testing.T) {
	cfg := SamplingConfig{Enabled: false}
	o, _, sink := newTestOrchestrator(t, 2, 2, cfg)

	o.Tick(context.Background()) // first tick: blit only
	for i := 0; i < 5; i++ {
		if err := o.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: error = %v", i, err)
		}
	}
	if sink.count() != 5 {
		t.Fatalf("sink received %d frames, want 5", sink.count())
	}
}

func TestDroppedCountsQueueFullFrames(t *testing.T) {
	cfg := SamplingConfig{Enabled: false}
	host := newFakeHost(2, 2)
	dims := gpu.Dims{Width: 2, Height: 2}
	cc, err := gpu.New("software", dims)
	if err != nil {
		t.Fatalf("gpu.New() error = %v", err)
	}
	defer cc.Close()

	o := NewCaptureOrchestrator(host, cc, nil, cfg)
	surface, _ := Create(2, 2)
	defer surface.Close()
	work := NewWorkBuffer(dims)
	conv, _ := NewConversionStage(cc, PixelFormatBGR0, ColorSpaceBT709, true)

	sink := newFakeSink(1) // capacity 1: second emit must be dropped
	o.AttachStream(surface, work, conv, sink, 0)
	o.Start()

	o.Tick(context.Background()) // first tick: blit only, no emit
	o.Tick(context.Background()) // emits, fills capacity 1
	o.Tick(context.Background()) // must be dropped

	if sink.count() != 1 {
		t.Fatalf("sink received %d frames, want 1 (capacity)", sink.count())
	}
	if o.Dropped(0) != 1 {
		t.Fatalf("Dropped(0) = %d, want 1", o.Dropped(0))
	}
}
