//go:build !windows

package capture

import "testing"

func TestSharedSurfaceBlitThenReadRoundTrips(t *testing.T) {
	s, err := Create(2, 2)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer s.Close()

	src := make([]byte, 2*2*4)
	for i := range src {
		src[i] = byte(i)
	}

	if err := s.BlitFrom(src); err != nil {
		t.Fatalf("BlitFrom() error = %v", err)
	}
	got, err := s.ReadCPU()
	if err != nil {
		t.Fatalf("ReadCPU() error = %v", err)
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], src[i])
		}
	}
}

func TestSharedSurfaceBlitRejectsTruncatedSource(t *testing.T) {
	s, err := Create(4, 4)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer s.Close()

	if err := s.BlitFrom(make([]byte, 4)); err == nil {
		t.Fatal("expected an error for a truncated source buffer")
	}
}

func TestSharedSurfaceReadCPUReturnsACopy(t *testing.T) {
	s, err := Create(1, 1)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer s.Close()

	s.BlitFrom([]byte{1, 2, 3, 4})
	first, _ := s.ReadCPU()
	first[0] = 99

	second, _ := s.ReadCPU()
	if second[0] == 99 {
		t.Fatal("ReadCPU should return a fresh copy, not alias internal storage")
	}
}
