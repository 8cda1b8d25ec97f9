package gpu

import "testing"

func TestDispatchGroupsRoundsUp(t *testing.T) {
	d := Dims{Width: 1280, Height: 720}
	x, y, z := d.DispatchGroups()
	if x != 160 || y != 90 || z != 1 {
		t.Errorf("DispatchGroups() = (%d,%d,%d), want (160,90,1)", x, y, z)
	}

	odd := Dims{Width: 9, Height: 1}
	x, y, z = odd.DispatchGroups()
	if x != 2 || y != 1 || z != 1 {
		t.Errorf("DispatchGroups() on non-multiple-of-8 = (%d,%d,%d), want (2,1,1)", x, y, z)
	}
}

func TestNewCompilesAllKernels(t *testing.T) {
	cc, err := New("software", Dims{Width: 16, Height: 16})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer cc.Close()

	if _, err := cc.ConversionKernel("yuv420"); err != nil {
		t.Errorf("ConversionKernel(yuv420) error = %v", err)
	}
	if _, err := cc.ConversionKernel("yuv444"); err != nil {
		t.Errorf("ConversionKernel(yuv444) error = %v", err)
	}
	if _, err := cc.ConversionKernel("bgr0"); err != nil {
		t.Errorf("ConversionKernel(bgr0) error = %v", err)
	}
	if _, err := cc.ConversionKernel("nonexistent"); err == nil {
		t.Error("ConversionKernel(nonexistent) expected an error")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("nonexistent-backend", Dims{Width: 1, Height: 1}); err == nil {
		t.Fatal("expected an error for an unregistered backend name")
	}
}
