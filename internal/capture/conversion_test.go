package capture

import (
	"testing"

	"github.com/lumenforge/capturecore/internal/gpu"
)

func newTestConversionStage(t *testing.T, w, h int, format PixelFormat, space ColorSpace) (*ConversionStage, *WorkBuffer) {
	t.Helper()
	dims := gpu.Dims{Width: w, Height: h}
	cc, err := gpu.New("software", dims)
	if err != nil {
		t.Fatalf("gpu.New() error = %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	work := NewWorkBuffer(dims)
	stage, err := NewConversionStage(cc, format, space, true)
	if err != nil {
		t.Fatalf("NewConversionStage() error = %v", err)
	}
	return stage, work
}

func fillWhite(work *WorkBuffer) {
	for i := range work.sum {
		work.sum[i] = 1.0
	}
}

func TestDownloadBGR0ProducesOnePackedPlane(t *testing.T) {
	stage, work := newTestConversionStage(t, 4, 4, PixelFormatBGR0, ColorSpaceBT709)
	fillWhite(work)

	planes, err := stage.Download(work)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(planes) != 1 {
		t.Fatalf("len(planes) = %d, want 1", len(planes))
	}
	if len(planes[0]) != 4*4*4 {
		t.Fatalf("len(planes[0]) = %d, want %d", len(planes[0]), 4*4*4)
	}
	for i := 0; i < 4*4; i++ {
		b, g, r, pad := planes[0][i*4], planes[0][i*4+1], planes[0][i*4+2], planes[0][i*4+3]
		if b != 255 || g != 255 || r != 255 || pad != 0 {
			t.Fatalf("pixel %d = (%d,%d,%d,%d), want (255,255,255,0)", i, b, g, r, pad)
		}
	}
}

func TestDownloadYUV420ChromaSubsampled(t *testing.T) {
	stage, work := newTestConversionStage(t, 4, 2, PixelFormatYUV420, ColorSpaceBT709)
	fillWhite(work)

	planes, err := stage.Download(work)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(planes) != 3 {
		t.Fatalf("len(planes) = %d, want 3", len(planes))
	}
	if len(planes[0]) != 4*2 {
		t.Fatalf("len(Y) = %d, want %d", len(planes[0]), 4*2)
	}
	if len(planes[1]) != 2*1 || len(planes[2]) != 2*1 {
		t.Fatalf("len(U)=%d len(V)=%d, want 2 each (half resolution in both dims)", len(planes[1]), len(planes[2]))
	}
	for _, y := range planes[0] {
		if y != 255 {
			t.Fatalf("Y plane value = %d, want 255 for pure white input", y)
		}
	}
}

func TestDownloadYUV444FullResolutionChroma(t *testing.T) {
	stage, work := newTestConversionStage(t, 2, 2, PixelFormatYUV444, ColorSpaceBT601)
	fillWhite(work)

	planes, err := stage.Download(work)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	for i, p := range planes {
		if len(p) != 2*2 {
			t.Fatalf("plane %d len = %d, want %d", i, len(p), 2*2)
		}
	}
}

func TestClampToByte(t *testing.T) {
	cases := []struct {
		in   float32
		want byte
	}{
		{-1.0, 0},
		{0.0, 0},
		{1.0, 255},
		{2.0, 255},
		{0.5, 128},
	}
	for _, c := range cases {
		if got := clampToByte(c.in); got != c.want {
			t.Errorf("clampToByte(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
