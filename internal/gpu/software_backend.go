package gpu

// softwareBackend is the portable reference Backend: it runs every "kernel"
// as plain Go over CPU-resident buffers instead of dispatching to a real
// compute device. It exists so the sampling/conversion math is exercised by
// tests on any machine, and so a host with no compute API available still
// has a correct (if slower) capture path.
type softwareBackend struct {
	kernels []string
}

func newSoftwareBackend() (Backend, error) {
	return &softwareBackend{}, nil
}

func (b *softwareBackend) Name() string { return "software" }

func (b *softwareBackend) CompileKernel(name string, source string) (KernelHandle, error) {
	b.kernels = append(b.kernels, name)
	return KernelHandle(len(b.kernels) - 1), nil
}

// Dispatch is a no-op on the software backend: SamplingAccumulator and
// ConversionStage call their own Go implementations directly rather than
// going through a generic opaque-buffer dispatch, since there is no real
// shading language to interpret here. It exists to satisfy Backend so a
// real backend's call sites (and tests against the interface) compile
// identically against either.
func (b *softwareBackend) Dispatch(kernel KernelHandle, groupsX, groupsY, groupsZ int) error {
	return nil
}

func (b *softwareBackend) Flush() error {
	return nil
}

func (b *softwareBackend) Close() error {
	return nil
}

// Kernel source is opaque to Backend; these are placeholders a real
// (Vulkan/D3D11) backend would replace with compiled shading-language text.
// The software backend ignores them entirely and runs the equivalent math
// directly in Go (see internal/capture's accumulator.go and conversion.go).
const (
	samplingKernelSource = "// sampling: work[p] += weight * srgb_decode(src[p])"
	clearKernelSource    = "// clear: work[p] = 0"
	passKernelSource     = "// pass: work[p] = src[p]"
)

func conversionKernelSource(variant string) string {
	return "// convert_" + variant
}
