package capture

import (
	"fmt"

	"github.com/lumenforge/capturecore/internal/logging"
)

var surfaceLog = logging.L("shared-surface")

// surfaceBackend is the per-platform cross-API texture handoff mechanism.
// On Windows it binds a real D3D11 shared-handle texture opened as a
// compute-API shader resource; everywhere else it substitutes explicit CPU
// staging, per the Design Notes' allowance that a portable implementation
// may use any equivalent so long as blit_from atomically publishes a
// consistent frame to the compute side.
type surfaceBackend interface {
	BlitFrom(renderTarget []byte, width, height int) error
	ReadCPU() ([]byte, error)
	Close() error
}

// SharedSurface is a width x height BGRA8 texture created on the render API
// and opened as a read-only shader resource on the compute API. One exists
// per video stream, created at movie start and destroyed at movie end.
type SharedSurface struct {
	width, height int
	backend       surfaceBackend
}

// Create opens a shared surface for one stream. Failure here fails session
// start, since the shared handle must be obtained and opened up front.
func Create(width, height int) (*SharedSurface, error) {
	backend, err := newPlatformSurface(width, height)
	if err != nil {
		return nil, fmt.Errorf("shared surface create %dx%d: %w", width, height, err)
	}
	return &SharedSurface{width: width, height: height, backend: backend}, nil
}

// BlitFrom copies the current render target into the shared texture byte
// for byte (no format conversion). It does not scale: the source must
// already be width x height BGRA8, and a truncated source is rejected as a
// copy failure rather than stretched. A copy failure is
// logged and the caller must treat the tick as a no-op, never a session
// failure — the invariant that the compute view and the render surface
// refer to the same memory survives a dropped frame; it does not survive a
// torn write.
func (s *SharedSurface) BlitFrom(renderTarget []byte) error {
	if err := s.backend.BlitFrom(renderTarget, s.width, s.height); err != nil {
		surfaceLog.Warn("blit failed, frame dropped", "error", err)
		return err
	}
	return nil
}

// ReadCPU returns the surface's current BGRA8 content visible to the
// compute side — the "srv()" read path that SamplingAccumulator consumes.
func (s *SharedSurface) ReadCPU() ([]byte, error) {
	return s.backend.ReadCPU()
}

// Close releases the surface and its shared handle.
func (s *SharedSurface) Close() error {
	return s.backend.Close()
}
