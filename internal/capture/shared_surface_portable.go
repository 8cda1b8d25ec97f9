//go:build !windows

package capture

import (
	"fmt"
	"sync"
)

// portableSurface is the cross-platform substitute for the native D3D11
// shared-handle texture: explicit CPU staging, as allowed by the Design
// Notes ("a portable implementation may substitute any equivalent... shared
// memory on the same device, or explicit CPU staging"). The contract is
// unchanged: BlitFrom atomically publishes a consistent frame to the
// compute side.
type portableSurface struct {
	mu            sync.Mutex
	width, height int
	buf           []byte
}

func newPlatformSurface(width, height int) (surfaceBackend, error) {
	return &portableSurface{
		width: width, height: height,
		buf: make([]byte, width*height*4),
	}, nil
}

func (s *portableSurface) BlitFrom(renderTarget []byte, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width != s.width || height != s.height {
		return fmt.Errorf("blit dimension mismatch: got %dx%d, want %dx%d", width, height, s.width, s.height)
	}
	if len(renderTarget) < len(s.buf) {
		return fmt.Errorf("blit source truncated: got %d bytes, want %d", len(renderTarget), len(s.buf))
	}
	copy(s.buf, renderTarget)
	return nil
}

func (s *portableSurface) ReadCPU() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *portableSurface) Close() error {
	return nil
}
