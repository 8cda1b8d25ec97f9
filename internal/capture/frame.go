// Package capture implements the per-frame pipeline: the shared-texture
// handoff from the host render API, the sampling accumulator, the GPU
// format conversion, and the bounded producer/consumer handoff into a
// stream's encoder thread.
package capture

import "sync/atomic"

// FrameItem is the unit of hand-off between ConversionStage's download and a
// VideoStream's encoder thread: a copy of mapped GPU bytes, row-pitch
// contiguous, already in the encoder's native pixel layout.
type FrameItem struct {
	// Planes holds 1 to 3 byte slices: a single packed plane for BGR0, or
	// Y/U/V planar data for YUV420/YUV444.
	Planes [][]byte
	// PresentationIndex is not set by the capture side, which leaves it
	// zero. The consuming VideoStream assigns its PTS to the encoder frame
	// immediately before submission and does not write it back here.
	PresentationIndex int64
}

// FrameQueue is a bounded single-producer/single-consumer FIFO of
// FrameItem. The producer is always the capture thread; the consumer is
// always that stream's encoder thread, so no mutex guards the ring itself —
// the buffered channel carries the items, and only the closed flag is an
// atomic shared between the two sides.
type FrameQueue struct {
	items  chan FrameItem
	closed atomic.Bool
}

// DefaultQueueCapacity matches the data model's fixed FrameQueue capacity.
const DefaultQueueCapacity = 256

// NewFrameQueue constructs a queue of the given capacity (DefaultQueueCapacity
// when cap <= 0).
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{items: make(chan FrameItem, capacity)}
}

// TryEnqueue offers an item without blocking. It returns false if the queue
// is at capacity, in which case the caller (CaptureOrchestrator) is
// responsible for counting the drop and logging it — frame-count
// conservation requires every drop to be accounted for, never silent.
//
// The soft bound is advisory: the hard memory-pressure guard is what
// actually keeps producers from running far ahead of a stalled encoder: by
// the time this queue is full the guard should already have engaged.
func (q *FrameQueue) TryEnqueue(item FrameItem) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an item is available or the queue is closed, in
// which case ok is false. This is the encoder thread's busy-dequeue loop
// primitive; Go's channel receive already blocks efficiently so no manual
// spin is needed.
func (q *FrameQueue) Dequeue() (FrameItem, bool) {
	item, ok := <-q.items
	return item, ok
}

// Close signals the consumer that no further items will be enqueued, once
// drained. Safe to call exactly once per queue, at end-of-stream after the
// flush frame has been pushed.
func (q *FrameQueue) Close() {
	q.closed.Store(true)
	close(q.items)
}

// Len reports the number of items currently buffered, used by the
// memory-pressure guard's per-stream accounting.
func (q *FrameQueue) Len() int {
	return len(q.items)
}
