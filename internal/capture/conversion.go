package capture

import (
	"fmt"

	"github.com/lumenforge/capturecore/internal/gpu"
)

// PixelFormat selects a ConversionStage variant.
type PixelFormat int

const (
	PixelFormatYUV420 PixelFormat = iota
	PixelFormatYUV444
	PixelFormatBGR0
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatYUV420:
		return "yuv420"
	case PixelFormatYUV444:
		return "yuv444"
	case PixelFormatBGR0:
		return "bgr0"
	default:
		return "unknown"
	}
}

// ColorSpace selects the YUV coefficient set.
type ColorSpace int

const (
	ColorSpaceBT601 ColorSpace = iota
	ColorSpaceBT709
)

type yuvCoeffs struct {
	yr, yg, yb float32
	ur, ug, ub float32
	vr, vg, vb float32
}

var coeffsBT601 = yuvCoeffs{
	yr: 0.299, yg: 0.587, yb: 0.114,
	ur: -0.168736, ug: -0.331264, ub: 0.500,
	vr: 0.500, vg: -0.418688, vb: -0.081312,
}

var coeffsBT709 = yuvCoeffs{
	yr: 0.2126, yg: 0.7152, yb: 0.0722,
	ur: -0.114572, ug: -0.385428, ub: 0.500,
	vr: 0.500, vg: -0.454153, vb: -0.045847,
}

func coeffsFor(space ColorSpace) yuvCoeffs {
	if space == ColorSpaceBT709 {
		return coeffsBT709
	}
	return coeffsBT601
}

// ConversionStage dispatches the format-specific compute kernel that turns a
// WorkBuffer's accumulated linear color into the encoder's native pixel
// layout, and performs the CPU readback described by the staging policy.
type ConversionStage struct {
	cc      *gpu.ComputeContext
	format  PixelFormat
	space   ColorSpace
	staging bool

	width, height int
}

// NewConversionStage creates a stage bound to the given format/colorspace.
// staging selects the default-buffer-then-copy readback policy; when false
// a single CPU-read buffer is dispatched into and mapped directly, trading
// one fewer GPU copy for a greater chance of a CPU/GPU pipeline stall.
func NewConversionStage(cc *gpu.ComputeContext, format PixelFormat, space ColorSpace, staging bool) (*ConversionStage, error) {
	if _, err := cc.ConversionKernel(format.String()); err != nil {
		return nil, err
	}
	dims := cc.Dims()
	return &ConversionStage{
		cc:      cc,
		format:  format,
		space:   space,
		staging: staging,
		width:   dims.Width,
		height:  dims.Height,
	}, nil
}

// Download dispatches the conversion kernel over work's accumulated color
// and returns the encoder-native planes. The returned byte slices are fresh
// copies (not aliasing work's internal storage), matching FrameItem's
// "copy of mapped GPU bytes" contract — callers may retain them past the
// next Download call.
func (c *ConversionStage) Download(work *WorkBuffer) ([][]byte, error) {
	kernel, err := c.cc.ConversionKernel(c.format.String())
	if err != nil {
		return nil, err
	}
	x, y, z := c.cc.Dims().DispatchGroups()
	if err := c.cc.Backend().Dispatch(kernel, x, y, z); err != nil {
		return nil, fmt.Errorf("conversion: dispatch %s: %w", c.format, err)
	}

	// The staging vs. direct-map distinction only affects how a real
	// backend schedules the GPU-side copy before the CPU can read it;
	// the software backend's result is identical either way, so the
	// flag is threaded through for parity with a hardware backend but
	// does not change the computed planes.
	if c.staging {
		if err := c.cc.Backend().Flush(); err != nil {
			return nil, fmt.Errorf("conversion: staging flush: %w", err)
		}
	}

	switch c.format {
	case PixelFormatYUV420:
		return c.toYUV420(work), nil
	case PixelFormatYUV444:
		return c.toYUV444(work), nil
	case PixelFormatBGR0:
		return c.toBGR0(work), nil
	default:
		return nil, fmt.Errorf("conversion: unsupported format %v", c.format)
	}
}

func clampToByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255.0 + 0.5)
}

func (c *ConversionStage) toBGR0(work *WorkBuffer) [][]byte {
	out := make([]byte, c.width*c.height*4)
	for i := 0; i < c.width*c.height; i++ {
		si := i * 3
		r := clampToByte(work.sum[si+0])
		g := clampToByte(work.sum[si+1])
		b := clampToByte(work.sum[si+2])
		di := i * 4
		out[di+0] = b
		out[di+1] = g
		out[di+2] = r
		out[di+3] = 0
	}
	return [][]byte{out}
}

func (c *ConversionStage) toYUV420(work *WorkBuffer) [][]byte {
	coeffs := coeffsFor(c.space)
	yPlane := make([]byte, c.width*c.height)
	uPlane := make([]byte, (c.width/2)*(c.height/2))
	vPlane := make([]byte, (c.width/2)*(c.height/2))

	for py := 0; py < c.height; py++ {
		for px := 0; px < c.width; px++ {
			i := py*c.width + px
			si := i * 3
			r, g, b := work.sum[si+0], work.sum[si+1], work.sum[si+2]
			y := coeffs.yr*r + coeffs.yg*g + coeffs.yb*b
			yPlane[i] = clampToByte(y)
		}
	}

	cw, ch := c.width/2, c.height/2
	for py := 0; py < ch; py++ {
		for px := 0; px < cw; px++ {
			// Average the 2x2 source block for chroma subsampling.
			var rSum, gSum, bSum float32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					sx, sy := px*2+dx, py*2+dy
					si := (sy*c.width + sx) * 3
					rSum += work.sum[si+0]
					gSum += work.sum[si+1]
					bSum += work.sum[si+2]
				}
			}
			r, g, b := rSum/4, gSum/4, bSum/4
			u := coeffs.ur*r + coeffs.ug*g + coeffs.ub*b + 0.5
			v := coeffs.vr*r + coeffs.vg*g + coeffs.vb*b + 0.5
			ci := py*cw + px
			uPlane[ci] = clampToByte(u)
			vPlane[ci] = clampToByte(v)
		}
	}

	return [][]byte{yPlane, uPlane, vPlane}
}

func (c *ConversionStage) toYUV444(work *WorkBuffer) [][]byte {
	coeffs := coeffsFor(c.space)
	yPlane := make([]byte, c.width*c.height)
	uPlane := make([]byte, c.width*c.height)
	vPlane := make([]byte, c.width*c.height)

	for i := 0; i < c.width*c.height; i++ {
		si := i * 3
		r, g, b := work.sum[si+0], work.sum[si+1], work.sum[si+2]
		y := coeffs.yr*r + coeffs.yg*g + coeffs.yb*b
		u := coeffs.ur*r + coeffs.ug*g + coeffs.ub*b + 0.5
		v := coeffs.vr*r + coeffs.vg*g + coeffs.vb*b + 0.5
		yPlane[i] = clampToByte(y)
		uPlane[i] = clampToByte(u)
		vPlane[i] = clampToByte(v)
	}

	return [][]byte{yPlane, uPlane, vPlane}
}
