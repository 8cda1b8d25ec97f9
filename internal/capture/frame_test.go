package capture

import "testing"

func TestTryEnqueueRespectsCapacity(t *testing.T) {
	q := NewFrameQueue(2)
	if !q.TryEnqueue(FrameItem{PresentationIndex: 0}) {
		t.Fatal("first enqueue should succeed")
	}
	if !q.TryEnqueue(FrameItem{PresentationIndex: 1}) {
		t.Fatal("second enqueue should succeed")
	}
	if q.TryEnqueue(FrameItem{PresentationIndex: 2}) {
		t.Fatal("third enqueue should be dropped, queue is at capacity")
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestDequeueReturnsInFIFOOrder(t *testing.T) {
	q := NewFrameQueue(4)
	for i := int64(0); i < 3; i++ {
		q.TryEnqueue(FrameItem{PresentationIndex: i})
	}
	for i := int64(0); i < 3; i++ {
		item, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() ok=false on item %d", i)
		}
		if item.PresentationIndex != i {
			t.Errorf("item %d: PresentationIndex = %d, want %d", i, item.PresentationIndex, i)
		}
	}
}

func TestDequeueAfterCloseDrainsThenReturnsFalse(t *testing.T) {
	q := NewFrameQueue(4)
	q.TryEnqueue(FrameItem{PresentationIndex: 0})
	q.Close()

	item, ok := q.Dequeue()
	if !ok || item.PresentationIndex != 0 {
		t.Fatalf("expected to drain the buffered item after Close, got ok=%v item=%+v", ok, item)
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("Dequeue() after drain of a closed queue should return ok=false")
	}
}

func TestTryEnqueueAfterCloseFails(t *testing.T) {
	q := NewFrameQueue(4)
	q.Close()
	if q.TryEnqueue(FrameItem{}) {
		t.Fatal("TryEnqueue on a closed queue should fail")
	}
}
