// Package audio implements §4.H's AudioStream: a bounded PCM16 queue and a
// RIFF/WAVE writer whose header sizes are patched at Close.
package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/lumenforge/capturecore/internal/logging"
)

var log = logging.L("audio-stream")

const (
	sampleRate    = 44100
	bitsPerSample = 16
	channels      = 2
	blockAlign    = channels * bitsPerSample / 8
	byteRate      = sampleRate * blockAlign

	riffHeaderSize = 44 // 12 (RIFF) + 24 (fmt ) + 8 (data chunk header)
)

// Stream owns the bounded PCM queue and its serial writer goroutine. While
// active it is fed copies of the host's audio-mix output; its worker writes
// them to disk in submission order.
type Stream struct {
	file *os.File
	w    *bufio.Writer

	queue chan []byte

	dataBytes atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// Open creates path and writes a placeholder RIFF/WAVE header (sizes
// patched on Close), matching WAVEFORMATEX{PCM, channels=2, rate=44100,
// bits=16}.
func Open(path string, queueCapacity int) (*Stream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create %s: %w", path, err)
	}

	s := &Stream{
		file:  f,
		w:     bufio.NewWriter(f),
		queue: make(chan []byte, queueCapacity),
		done:  make(chan struct{}),
	}

	if err := s.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}

	go s.runWorker()
	return s, nil
}

func (s *Stream) writeHeader() error {
	var hdr [riffHeaderSize]byte

	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 0) // patched at Close
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], channels)
	binary.LittleEndian.PutUint32(hdr[24:28], sampleRate)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], 0) // patched at Close

	_, err := s.w.Write(hdr[:])
	return err
}

// Enqueue copies samples into the bounded queue. Returns false if the queue
// is full, in which case the caller should log and drop, matching the
// video path's backpressure posture.
func (s *Stream) Enqueue(samples []byte) bool {
	cp := make([]byte, len(samples))
	copy(cp, samples)
	select {
	case s.queue <- cp:
		return true
	default:
		log.Warn("audio queue full, samples dropped")
		return false
	}
}

func (s *Stream) runWorker() {
	defer close(s.done)
	for samples := range s.queue {
		n, err := s.w.Write(samples)
		if err != nil {
			log.Error("pcm write failed", "error", err)
			continue
		}
		s.dataBytes.Add(uint64(n))
	}
}

// Close joins the worker, patches the RIFF and data chunk sizes, and
// closes the file. Idempotent.
func (s *Stream) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done

		if err := s.w.Flush(); err != nil {
			closeErr = err
			return
		}

		dataSize := s.dataBytes.Load()
		info, err := s.file.Stat()
		if err != nil {
			closeErr = err
			return
		}
		riffSize := uint32(info.Size()) - 8

		if _, err := s.file.WriteAt(le32(riffSize), 4); err != nil {
			closeErr = err
			return
		}
		if _, err := s.file.WriteAt(le32(uint32(dataSize)), 40); err != nil {
			closeErr = err
			return
		}

		closeErr = s.file.Close()
	})
	return closeErr
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
