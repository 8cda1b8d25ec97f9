// Package video implements §4.E's VideoStream: per-output encoder/muxer
// lifecycle, the bounded frame queue feeding its encoder thread, and PTS
// assignment at submit time.
package video

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"

	"github.com/lumenforge/capturecore/internal/capture"
	"github.com/lumenforge/capturecore/internal/engerr"
	"github.com/lumenforge/capturecore/internal/logging"
)

// Config describes one output's encoder/muxer parameters, resolved from the
// session's cvars before the stream is opened.
type Config struct {
	Path        string
	Width       int
	Height      int
	FPS         int
	EncoderName string // e.g. "libx264", "libx264rgb"
	PixelFormat capture.PixelFormat
	ColorSpace  capture.ColorSpace

	X264CRF    int
	X264Preset string
	X264Intra  bool
}

// Stream owns one output's codec context, muxer, bounded frame queue, and
// encoder thread.
type Stream struct {
	cfg   Config
	index int
	log   *slog.Logger

	formatCtx *astiav.FormatContext
	ioCtx     *astiav.IOContext
	codecCtx  *astiav.CodecContext
	avStream  *astiav.Stream

	queue *capture.FrameQueue

	presentationIndex atomic.Int64
	droppedRuntime    atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

// Open validates the pixel format against the named encoder (falling back
// to the encoder's first advertised format otherwise), configures the
// codec context, writes the container header, and launches the encoder
// thread. Failure here is a CodecError that aborts session start.
func Open(cfg Config, index int) (*Stream, error) {
	log := logging.WithStream(logging.L("video-stream"), index)

	encoder := astiav.FindEncoderByName(cfg.EncoderName)
	if encoder == nil {
		return nil, engerr.Wrap(engerr.Codec, fmt.Sprintf("unknown encoder %q", cfg.EncoderName), nil)
	}

	formatCtx, err := astiav.AllocOutputFormatContext(nil, "", cfg.Path)
	if err != nil || formatCtx == nil {
		return nil, engerr.Wrap(engerr.Codec, "allocate output format context", err)
	}

	avStream := formatCtx.NewStream(encoder)
	if avStream == nil {
		return nil, engerr.New(engerr.Codec, "allocate output stream failed")
	}

	codecCtx := astiav.AllocCodecContext(encoder)
	if codecCtx == nil {
		return nil, engerr.New(engerr.Codec, "allocate codec context failed")
	}

	codecCtx.SetWidth(cfg.Width)
	codecCtx.SetHeight(cfg.Height)
	codecCtx.SetPixelFormat(resolvePixelFormat(encoder, cfg.PixelFormat))
	codecCtx.SetTimeBase(astiav.NewRational(1, cfg.FPS))
	codecCtx.SetFramerate(astiav.NewRational(cfg.FPS, 1))

	opts := astiav.NewDictionary()
	defer opts.Free()
	if cfg.EncoderName == "libx264" || cfg.EncoderName == "libx264rgb" {
		opts.Set("preset", cfg.X264Preset, 0)
		opts.Set("crf", fmt.Sprintf("%d", cfg.X264CRF), 0)
		if cfg.X264Intra {
			opts.Set("x264-params", "keyint=1:scenecut=0", 0)
		}
	}

	if err := codecCtx.Open(encoder, opts); err != nil {
		return nil, engerr.Wrap(engerr.Codec, "open encoder", err)
	}

	if err := avStream.CodecParameters().FromCodecContext(codecCtx); err != nil {
		return nil, engerr.Wrap(engerr.Codec, "copy codec parameters to stream", err)
	}
	avStream.SetTimeBase(codecCtx.TimeBase())

	var ioCtx *astiav.IOContext
	if !formatCtx.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		var err error
		ioCtx, err = astiav.OpenIOContext(cfg.Path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			return nil, engerr.Wrap(engerr.Codec, "open output file", err)
		}
		formatCtx.SetPb(ioCtx)
	}

	if err := formatCtx.WriteHeader(nil); err != nil {
		return nil, engerr.Wrap(engerr.Codec, "write container header", err)
	}

	s := &Stream{
		cfg:       cfg,
		index:     index,
		log:       log,
		formatCtx: formatCtx,
		codecCtx:  codecCtx,
		avStream:  avStream,
		ioCtx:     ioCtx,
		queue:     capture.NewFrameQueue(capture.DefaultQueueCapacity),
		done:      make(chan struct{}),
	}

	go s.runEncoderThread()
	return s, nil
}

// TryEnqueue satisfies capture.StreamSink.
func (s *Stream) TryEnqueue(item capture.FrameItem) bool {
	return s.queue.TryEnqueue(item)
}

// QueueLen satisfies capture.StreamSink.
func (s *Stream) QueueLen() int {
	return s.queue.Len()
}

// DroppedAtRuntime counts frames dropped by a runtime encode failure (not a
// full-queue drop, which the orchestrator counts itself).
func (s *Stream) DroppedAtRuntime() int64 {
	return s.droppedRuntime.Load()
}

// runEncoderThread repeatedly dequeues a FrameItem, assigns it the next
// PTS, submits it to the encoder, drains every available packet, rescales
// timestamps, and writes interleaved into the muxer. It exits once the
// queue is closed and fully drained.
func (s *Stream) runEncoderThread() {
	defer close(s.done)

	frame := astiav.AllocFrame()
	defer frame.Free()
	frame.SetWidth(s.cfg.Width)
	frame.SetHeight(s.cfg.Height)
	frame.SetPixelFormat(s.codecCtx.PixelFormat())

	for {
		item, ok := s.queue.Dequeue()
		if !ok {
			s.flush()
			return
		}

		if err := frame.AllocBuffer(32); err != nil {
			s.log.Warn("frame buffer alloc failed, frame dropped", "error", err)
			s.droppedRuntime.Add(1)
			continue
		}
		bindPlanes(frame, item.Planes)

		pts := s.presentationIndex.Add(1) - 1
		frame.SetPts(pts)

		if err := s.encodeAndWrite(frame); err != nil {
			s.log.Warn("encode failed, frame dropped", "error", err)
			s.droppedRuntime.Add(1)
		}
	}
}

// encodeAndWrite submits one frame (nil for the end-of-stream flush) and
// drains every packet the encoder has ready.
func (s *Stream) encodeAndWrite(frame *astiav.Frame) error {
	if err := s.codecCtx.SendFrame(frame); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return err
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()

	for {
		err := s.codecCtx.ReceivePacket(pkt)
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return nil
		}
		if err != nil {
			return err
		}

		pkt.SetStreamIndex(s.avStream.Index())
		pkt.RescaleTs(s.codecCtx.TimeBase(), s.avStream.TimeBase())
		if err := s.formatCtx.WriteInterleavedFrame(pkt); err != nil {
			return err
		}
		pkt.Unref()
	}
}

// flush submits a nil frame, drains remaining packets, writes the trailer,
// and releases the muxer/codec resources, matching session-end teardown.
func (s *Stream) flush() {
	_ = s.encodeAndWrite(nil)
	_ = s.formatCtx.WriteTrailer()
	s.codecCtx.Free()
	if s.ioCtx != nil {
		s.ioCtx.Close()
	}
	s.formatCtx.Free()
}

// Close signals no further frames will be enqueued, waits for the encoder
// thread to finish its flush, and releases resources. Idempotent.
func (s *Stream) Close() {
	s.stopOnce.Do(func() {
		s.queue.Close()
		<-s.done
	})
}

// PresentationIndex returns the next PTS that will be assigned, for test
// assertions about monotonicity.
func (s *Stream) PresentationIndex() int64 {
	return s.presentationIndex.Load()
}

func resolvePixelFormat(encoder *astiav.Codec, want capture.PixelFormat) astiav.PixelFormat {
	supported := encoder.PixelFormats()
	target := pixelFormatToAstiav(want)
	for _, pf := range supported {
		if pf == target {
			return target
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	return target
}

func pixelFormatToAstiav(pf capture.PixelFormat) astiav.PixelFormat {
	switch pf {
	case capture.PixelFormatYUV420:
		return astiav.PixelFormatYuv420P
	case capture.PixelFormatYUV444:
		return astiav.PixelFormatYuv444P
	case capture.PixelFormatBGR0:
		return astiav.PixelFormatBgr0
	default:
		return astiav.PixelFormatYuv420P
	}
}

func bindPlanes(frame *astiav.Frame, planes [][]byte) {
	for i, plane := range planes {
		frame.SetData(i, plane)
	}
}
