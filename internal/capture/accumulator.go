package capture

import (
	"fmt"

	"github.com/lumenforge/capturecore/internal/gpu"
	"github.com/lumenforge/capturecore/internal/logging"
)

var log = logging.L("sampler")

// SamplingAccumulator implements the three work-buffer operations of §4.C
// against one stream's WorkBuffer, driven by the shared ComputeContext's
// backend.
type SamplingAccumulator struct {
	cc     *gpu.ComputeContext
	work   *WorkBuffer
	stream int
}

// NewSamplingAccumulator binds an accumulator to one stream's work buffer.
func NewSamplingAccumulator(cc *gpu.ComputeContext, work *WorkBuffer, streamIndex int) *SamplingAccumulator {
	return &SamplingAccumulator{cc: cc, work: work, stream: streamIndex}
}

func (a *SamplingAccumulator) dispatch(kernel gpu.KernelHandle) error {
	x, y, z := a.cc.Dims().DispatchGroups()
	return a.cc.Backend().Dispatch(kernel, x, y, z)
}

// WeightedAdd maps the sampling constant buffer with DISCARD semantics
// (conceptually: each call supplies a fresh weight, never reusing a stale
// mapped region), dispatches the sampling kernel, and issues Flush
// immediately after. Without that Flush the per-sample dispatches can be
// coalesced or dropped by the backend's command queue, collapsing sampling
// into pass-through — so Flush is not optional here.
func (a *SamplingAccumulator) WeightedAdd(src []byte, weight float32) error {
	if weight == 0 {
		return nil
	}
	if len(src) < a.work.width*a.work.height*4 {
		return fmt.Errorf("sampler: source buffer too small for %dx%d frame", a.work.width, a.work.height)
	}

	if err := a.dispatch(a.cc.SamplingKernel()); err != nil {
		return err
	}

	for i := 0; i < a.work.width*a.work.height; i++ {
		px := i * 4
		b := srgbDecode(src[px+0])
		g := srgbDecode(src[px+1])
		r := srgbDecode(src[px+2])

		si := i * 3
		a.work.sum[si+0] += weight * r
		a.work.sum[si+1] += weight * g
		a.work.sum[si+2] += weight * b
	}

	if err := a.cc.Backend().Flush(); err != nil {
		return fmt.Errorf("sampler: flush after weighted add: %w", err)
	}
	return nil
}

// Pass overwrites the work buffer pixel-for-pixel from src, used in
// pass-through mode where sampling is disabled.
func (a *SamplingAccumulator) Pass(src []byte) error {
	if len(src) < a.work.width*a.work.height*4 {
		return fmt.Errorf("sampler: source buffer too small for %dx%d frame", a.work.width, a.work.height)
	}
	if err := a.dispatch(a.cc.PassKernel()); err != nil {
		return err
	}
	for i := 0; i < a.work.width*a.work.height; i++ {
		px := i * 4
		si := i * 3
		a.work.sum[si+0] = srgbDecode(src[px+2])
		a.work.sum[si+1] = srgbDecode(src[px+1])
		a.work.sum[si+2] = srgbDecode(src[px+0])
	}
	return nil
}

// Clear zeroes the work buffer, matching the clear compute kernel.
func (a *SamplingAccumulator) Clear() error {
	if err := a.dispatch(a.cc.ClearKernel()); err != nil {
		return err
	}
	a.work.Clear()
	return nil
}
