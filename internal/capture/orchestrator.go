package capture

import (
	"context"
	"sync/atomic"

	"github.com/lumenforge/capturecore/internal/gpu"
	"github.com/lumenforge/capturecore/internal/hostapi"
	"github.com/lumenforge/capturecore/internal/logging"
	"github.com/lumenforge/capturecore/internal/memguard"
)

var orchLog = logging.L("orchestrator")

// StreamSink is what the orchestrator enqueues a converted frame into; a
// VideoStream satisfies this by wrapping its FrameQueue. Kept as an
// interface here so internal/capture does not import internal/video,
// avoiding an import cycle while VideoStream itself owns FrameQueue.
type StreamSink interface {
	TryEnqueue(item FrameItem) bool
	QueueLen() int
}

// streamPipeline bundles the per-stream pieces the orchestrator drives
// every tick: the shared surface, the accumulator/work buffer pair, the
// conversion stage, the scheduler's carried state, and the sink it enqueues
// converted frames into.
type streamPipeline struct {
	surface     *SharedSurface
	accumulator *SamplingAccumulator
	work        *WorkBuffer
	conversion  *ConversionStage
	state       SamplingState
	sink        StreamSink

	dropped atomic.Int64
}

// CaptureOrchestrator is the frame-tick entry point hooked from the host's
// view-render tick, implementing §4.G's six-step decision order.
type CaptureOrchestrator struct {
	host    hostapi.RenderHost
	cc      *gpu.ComputeContext
	guard   *memguard.Guard
	cfg     SamplingConfig
	streams []*streamPipeline

	started    atomic.Bool
	firstFrame atomic.Bool
}

// NewCaptureOrchestrator wires a RenderHost, compute context, and the
// memory guard together. Streams are attached via AttachStream before the
// session starts ticking.
func NewCaptureOrchestrator(host hostapi.RenderHost, cc *gpu.ComputeContext, guard *memguard.Guard, cfg SamplingConfig) *CaptureOrchestrator {
	o := &CaptureOrchestrator{host: host, cc: cc, guard: guard, cfg: cfg}
	o.firstFrame.Store(true)
	return o
}

// AttachStream registers one output's pipeline. Must be called before Start.
func (o *CaptureOrchestrator) AttachStream(surface *SharedSurface, work *WorkBuffer, conv *ConversionStage, sink StreamSink, streamIndex int) {
	accum := NewSamplingAccumulator(o.cc, work, streamIndex)
	o.streams = append(o.streams, &streamPipeline{
		surface:     surface,
		accumulator: accum,
		work:        work,
		conversion:  conv,
		state:       NewSamplingState(),
		sink:        sink,
	})
}

// Start marks the orchestrator ready to process ticks.
func (o *CaptureOrchestrator) Start() {
	o.started.Store(true)
}

// Stop marks the orchestrator as no longer accepting ticks; subsequent
// Tick calls are no-ops, matching "if session not started, return".
func (o *CaptureOrchestrator) Stop() {
	o.started.Store(false)
}

// BufferedItems implements memguard's drainChecker, reporting the live
// outstanding frame count across every attached stream's queue. Computed
// fresh on each call so a guard waiting on the drain observes the encoder
// actually catching up, rather than a count that only ever moves upward.
func (o *CaptureOrchestrator) BufferedItems() int64 {
	return o.totalBuffered()
}

// Tick implements the six-step decision order of §4.G.
func (o *CaptureOrchestrator) Tick(ctx context.Context) error {
	// 1. If session not started, return.
	if !o.started.Load() {
		return nil
	}
	// 2. If host is drawing a loading screen, return.
	if o.host.IsLoadingScreen() {
		return nil
	}
	// 3. If host console is visible, return.
	if o.host.IsConsoleVisible() {
		return nil
	}

	backbuffer, err := o.host.Backbuffer()
	if err != nil {
		orchLog.Warn("backbuffer unavailable, tick dropped", "error", err)
		return nil
	}

	// 4. First captured tick: blit only, no encode.
	if o.firstFrame.CompareAndSwap(true, false) {
		for _, sp := range o.streams {
			if err := sp.surface.BlitFrom(backbuffer); err != nil {
				orchLog.Warn("first-frame blit failed", "error", err)
			}
		}
		return nil
	}

	// 5. Memory-pressure guard.
	if o.guard != nil {
		o.guard.WaitForDrain(ctx, o)
	}

	// 6. Per stream: blit, schedule, possibly convert and enqueue.
	for i, sp := range o.streams {
		if err := sp.surface.BlitFrom(backbuffer); err != nil {
			continue
		}
		src, err := sp.surface.ReadCPU()
		if err != nil {
			orchLog.Warn("shared surface read failed, frame dropped", "stream", i, "error", err)
			continue
		}
		if err := o.driveStream(sp, src); err != nil {
			orchLog.Warn("stream pipeline error", "stream", i, "error", err)
		}
	}
	return nil
}

func (o *CaptureOrchestrator) driveStream(sp *streamPipeline, src []byte) error {
	if !o.cfg.Enabled {
		if err := sp.accumulator.Pass(src); err != nil {
			return err
		}
		return o.emit(sp)
	}

	result := Decide(&sp.state, o.cfg)
	switch result.Action {
	case ActionNone:
		return nil
	case ActionPartial:
		return sp.accumulator.WeightedAdd(src, result.Weight)
	case ActionComplete:
		if err := sp.accumulator.WeightedAdd(src, result.Weight); err != nil {
			return err
		}
		if err := o.emit(sp); err != nil {
			return err
		}
		for i := 0; i < result.AdditionalCopies; i++ {
			// Resolved semantics of "additional full copies": literal
			// duplication of the just-emitted frame, re-downloading and
			// re-enqueuing the same work buffer contents rather than
			// re-sampling.
			if err := o.emit(sp); err != nil {
				return err
			}
		}
		if result.ClearAfterEmit {
			if err := sp.accumulator.Clear(); err != nil {
				return err
			}
		}
		if result.HasTrailingAdd {
			if err := sp.accumulator.WeightedAdd(src, result.TrailingWeight); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// emit converts the work buffer's current accumulation and enqueues it.
func (o *CaptureOrchestrator) emit(sp *streamPipeline) error {
	planes, err := sp.conversion.Download(sp.work)
	if err != nil {
		return err
	}
	return o.enqueue(sp, planes)
}

func (o *CaptureOrchestrator) enqueue(sp *streamPipeline, planes [][]byte) error {
	item := FrameItem{Planes: planes}
	if !sp.sink.TryEnqueue(item) {
		sp.dropped.Add(1)
		orchLog.Warn("frame queue full, frame dropped")
		return nil
	}
	return nil
}

func (o *CaptureOrchestrator) totalBuffered() int64 {
	var total int64
	for _, sp := range o.streams {
		total += int64(sp.sink.QueueLen())
	}
	return total
}

// Dropped returns the per-stream count of frames dropped due to a full
// queue, for the frame-count conservation property: produced_by_capture =
// consumed_by_encoder + queued_at_end + dropped_with_log.
func (o *CaptureOrchestrator) Dropped(streamIndex int) int64 {
	if streamIndex < 0 || streamIndex >= len(o.streams) {
		return 0
	}
	return o.streams[streamIndex].dropped.Load()
}
