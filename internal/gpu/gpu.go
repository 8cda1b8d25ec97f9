// Package gpu owns the compute device, its compiled kernels, and the shared
// frame dimensions used by every stream of a session, behind a
// backend interface with a name-keyed factory registry.
package gpu

import (
	"fmt"
	"sync"

	"github.com/lumenforge/capturecore/internal/logging"
)

var log = logging.L("gpu")

// Dims is a width/height pair, reused for both the shared {width,height}
// constant buffer at slot 0 and dispatch-group math.
type Dims struct {
	Width, Height int
}

// DispatchGroups returns the compute dispatch dimensions for kernels
// assuming 8x8 thread groups: ceil(w/8) x ceil(h/8) x 1.
func (d Dims) DispatchGroups() (x, y, z int) {
	x = (d.Width + 7) / 8
	y = (d.Height + 7) / 8
	z = 1
	return
}

// Backend is the compute-device contract a ComputeContext drives. A real
// deployment binds this to a native compute API (Vulkan/D3D11 compute
// shaders); Backend abstracts over that so the sampling/conversion logic
// above it is backend-agnostic and testable without a GPU attached.
type Backend interface {
	Name() string
	// CompileKernel compiles source (backend-specific shading language,
	// opaque to the caller) into a handle reused across dispatches.
	CompileKernel(name string, source string) (KernelHandle, error)
	// Dispatch runs a compiled kernel over groupsX*groupsY*groupsZ thread
	// groups against the currently bound buffers.
	Dispatch(kernel KernelHandle, groupsX, groupsY, groupsZ int) error
	// Flush issues a host-queue flush, preventing the backend from
	// coalescing (and thereby dropping) back-to-back dispatches with
	// distinct per-dispatch constant data. Required after every
	// weighted_add per §4.C's Flush rationale.
	Flush() error
	// Close releases device resources.
	Close() error
}

// KernelHandle is an opaque compiled-shader reference.
type KernelHandle int

// Factory constructs a Backend. Compute backends self-register via
// RegisterBackend from an init function, so a build can add a real Vulkan/D3D11 implementation behind a build tag
// without this package importing cgo directly.
type Factory func() (Backend, error)

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
)

// RegisterBackend makes a named backend factory available to New.
func RegisterBackend(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

func init() {
	RegisterBackend("software", newSoftwareBackend)
}

// ComputeContext owns one compute device shared across all streams of a
// session: the compiled sampling/clear/pass/conversion kernels and the
// frame dimensions. It holds no constant-buffer objects; the per-dispatch
// weight is passed to the accumulator's Go code directly.
type ComputeContext struct {
	backend Backend

	samplingKernel    KernelHandle
	clearKernel       KernelHandle
	passKernel        KernelHandle
	conversionKernels map[string]KernelHandle

	dims Dims
}

// New creates a single compute device for a session, selecting backend by
// name ("software" is always available; a real build may register
// "vulkan" or "d3d11compute" behind a build tag).
func New(backendName string, dims Dims) (*ComputeContext, error) {
	mu.Lock()
	factory, ok := factories[backendName]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("gpu: unknown backend %q", backendName)
	}

	backend, err := factory()
	if err != nil {
		return nil, fmt.Errorf("gpu: create backend %q: %w", backendName, err)
	}

	cc := &ComputeContext{
		backend:           backend,
		dims:              dims,
		conversionKernels: make(map[string]KernelHandle),
	}

	if cc.samplingKernel, err = backend.CompileKernel("sampling", samplingKernelSource); err != nil {
		backend.Close()
		return nil, err
	}
	if cc.clearKernel, err = backend.CompileKernel("clear", clearKernelSource); err != nil {
		backend.Close()
		return nil, err
	}
	if cc.passKernel, err = backend.CompileKernel("pass", passKernelSource); err != nil {
		backend.Close()
		return nil, err
	}

	for _, variant := range []string{"yuv420", "yuv444", "bgr0"} {
		h, err := backend.CompileKernel("convert_"+variant, conversionKernelSource(variant))
		if err != nil {
			backend.Close()
			return nil, err
		}
		cc.conversionKernels[variant] = h
	}

	log.Info("compute context created", "backend", backend.Name(), "width", dims.Width, "height", dims.Height)
	return cc, nil
}

// Dims returns the session's frame dimensions.
func (cc *ComputeContext) Dims() Dims { return cc.dims }

// Backend exposes the raw dispatch surface for SamplingAccumulator and
// ConversionStage, which own the actual buffer bindings.
func (cc *ComputeContext) Backend() Backend { return cc.backend }

// SamplingKernel returns the compiled weighted-add kernel handle.
func (cc *ComputeContext) SamplingKernel() KernelHandle { return cc.samplingKernel }

// ClearKernel returns the compiled work-buffer-clear kernel handle.
func (cc *ComputeContext) ClearKernel() KernelHandle { return cc.clearKernel }

// PassKernel returns the compiled pixel-for-pixel copy kernel handle.
func (cc *ComputeContext) PassKernel() KernelHandle { return cc.passKernel }

// ConversionKernel returns the compiled kernel for the named pixel-format
// variant ("yuv420", "yuv444", "bgr0").
func (cc *ComputeContext) ConversionKernel(variant string) (KernelHandle, error) {
	h, ok := cc.conversionKernels[variant]
	if !ok {
		return 0, fmt.Errorf("gpu: unknown conversion variant %q", variant)
	}
	return h, nil
}

// Close releases the backend and all compiled kernels.
func (cc *ComputeContext) Close() error {
	return cc.backend.Close()
}
