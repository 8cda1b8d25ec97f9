package main

// syntheticHost is a minimal hostapi.RenderHost used by the `start`
// smoke-test harness: it generates a solid-color backbuffer instead of
// hooking a real game process, so the capture/sampling/conversion/encode
// pipeline can be exercised end-to-end without one attached.
type syntheticHost struct {
	width, height int
	frame         []byte
	tick          int
}

func newSyntheticHost(width, height int) *syntheticHost {
	h := &syntheticHost{width: width, height: height, frame: make([]byte, width*height*4)}
	h.paint(128, 128, 128)
	return h
}

func (h *syntheticHost) paint(b, g, r byte) {
	for i := 0; i < h.width*h.height; i++ {
		px := i * 4
		h.frame[px+0] = b
		h.frame[px+1] = g
		h.frame[px+2] = r
		h.frame[px+3] = 0
	}
}

func (h *syntheticHost) DeviceHandle() uintptr { return 0 }

func (h *syntheticHost) Backbuffer() ([]byte, error) {
	h.tick++
	out := make([]byte, len(h.frame))
	copy(out, h.frame)
	return out, nil
}

func (h *syntheticHost) IsLoadingScreen() bool  { return false }
func (h *syntheticHost) IsConsoleVisible() bool { return false }
