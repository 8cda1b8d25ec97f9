package capture

import (
	"math"

	"github.com/lumenforge/capturecore/internal/gpu"
)

// WorkBuffer is the per-stream accumulating color sum described in §3: a
// structured buffer of {r,g,b,_pad} float32 elements, one per pixel. It is
// owned by exactly one ConversionStage. Initial content is undefined until
// the first Clear; Invariant: the sum of weights added since the last Clear
// equals the buffer's effective exposure.
type WorkBuffer struct {
	width, height int
	sum           []float32 // interleaved r,g,b triples, len = width*height*3
}

// NewWorkBuffer allocates a buffer sized to the session's frame dimensions.
// Content is left undefined (matching the data model) until the first Clear.
func NewWorkBuffer(dims gpu.Dims) *WorkBuffer {
	return &WorkBuffer{
		width:  dims.Width,
		height: dims.Height,
		sum:    make([]float32, dims.Width*dims.Height*3),
	}
}

// Clear zeroes the buffer, matching the clear compute kernel's effect.
func (w *WorkBuffer) Clear() {
	for i := range w.sum {
		w.sum[i] = 0
	}
}

// srgbDecode approximates the sampling kernel's srgb_decode step: converts
// an 8-bit sRGB-encoded channel sample to a linear float in [0,1].
func srgbDecode(c uint8) float32 {
	v := float32(c) / 255.0
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64((v+0.055)/1.055), 2.4))
}
