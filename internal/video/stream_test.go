package video

import (
	"testing"

	"github.com/asticode/go-astiav"

	"github.com/lumenforge/capturecore/internal/capture"
)

func TestPixelFormatToAstiavMapping(t *testing.T) {
	cases := map[capture.PixelFormat]astiav.PixelFormat{
		capture.PixelFormatYUV420: astiav.PixelFormatYuv420P,
		capture.PixelFormatYUV444: astiav.PixelFormatYuv444P,
		capture.PixelFormatBGR0:   astiav.PixelFormatBgr0,
	}
	for pf, want := range cases {
		if got := pixelFormatToAstiav(pf); got != want {
			t.Errorf("pixelFormatToAstiav(%v) = %v, want %v", pf, got, want)
		}
	}
}
