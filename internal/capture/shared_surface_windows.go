//go:build windows

package capture

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"
)

// D3D11 procs used to create the render-side shared texture. This mirrors
// the teacher's DXGI duplication setup: LazyDLL-bound entry points and raw
// COM vtable calls rather than a cgo binding, since the D3D11 ABI is stable
// and small enough to drive directly through syscall.
var (
	d3d11DLL              = syscall.NewLazyDLL("d3d11.dll")
	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	d3d11CreateDeviceBGRASupport = 0x20

	dxgiFormatB8G8R8A8 = 87
	d3d11UsageDefault   = 0
	d3d11UsageStaging   = 3
	d3d11CPUAccessRead  = 0x20000
	d3d11BindShaderRes  = 0x8

	// MiscFlags bit enabling a shareable handle on the created texture.
	d3d11ResourceMiscShared = 0x2

	// COM vtable indices (after IUnknown's 3 slots where applicable).
	d3d11DeviceCreateTexture2D = 5  // ID3D11Device
	d3d11CtxMap                = 14 // ID3D11DeviceContext
	d3d11CtxUnmap              = 15 // ID3D11DeviceContext
	d3d11CtxCopyResource       = 47 // ID3D11DeviceContext
)

type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

type d3d11MappedSubresource struct {
	Data        uintptr
	RowPitch    uint32
	DepthPitch  uint32
}

// windowsSurface implements surfaceBackend by creating a shareable D3D11
// BGRA8 texture and a staging texture alongside a CPU-side mirror buffer.
// BlitFrom writes into the mirror and ReadCPU returns a copy of it; neither
// reads back from the D3D11 textures, and nothing in this module opens the
// shared handle on a compute API.
type windowsSurface struct {
	mu sync.Mutex

	width, height int

	device  uintptr
	context uintptr
	texture uintptr
	staging uintptr

	cpuBuf []byte
}

func newPlatformSurface(width, height int) (surfaceBackend, error) {
	s := &windowsSurface{width: width, height: height, cpuBuf: make([]byte, width*height*4)}
	if err := s.createDevice(); err != nil {
		return nil, err
	}
	if err := s.createTexture(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *windowsSurface) createDevice() error {
	var device, context uintptr
	ret, _, _ := procD3D11CreateDevice.Call(
		0, // default adapter
		uintptr(d3dDriverTypeHardware),
		0,
		uintptr(d3d11CreateDeviceBGRASupport),
		0, 0, // feature levels array, count (use default)
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&device)),
		0, // out feature level
		uintptr(unsafe.Pointer(&context)),
	)
	if ret != 0 {
		return fmt.Errorf("D3D11CreateDevice failed: hresult=0x%x", uint32(ret))
	}
	s.device = device
	s.context = context
	return nil
}

func (s *windowsSurface) createTexture() error {
	desc := d3d11Texture2DDesc{
		Width: uint32(s.width), Height: uint32(s.height),
		MipLevels: 1, ArraySize: 1,
		Format: dxgiFormatB8G8R8A8,
		SampleCount: 1,
		Usage:       d3d11UsageDefault,
		BindFlags:   d3d11BindShaderRes,
		MiscFlags:   d3d11ResourceMiscShared,
	}
	vtbl := (*[20]uintptr)(unsafe.Pointer(*(*uintptr)(unsafe.Pointer(s.device))))
	var texture uintptr
	ret, _, _ := syscall.SyscallN(vtbl[d3d11DeviceCreateTexture2D],
		s.device, uintptr(unsafe.Pointer(&desc)), 0, uintptr(unsafe.Pointer(&texture)))
	if ret != 0 {
		return fmt.Errorf("CreateTexture2D failed: hresult=0x%x", uint32(ret))
	}
	s.texture = texture

	stagingDesc := desc
	stagingDesc.Usage = d3d11UsageStaging
	stagingDesc.BindFlags = 0
	stagingDesc.CPUAccessFlags = d3d11CPUAccessRead
	stagingDesc.MiscFlags = 0
	var staging uintptr
	ret, _, _ = syscall.SyscallN(vtbl[d3d11DeviceCreateTexture2D],
		s.device, uintptr(unsafe.Pointer(&stagingDesc)), 0, uintptr(unsafe.Pointer(&staging)))
	if ret != 0 {
		return fmt.Errorf("CreateTexture2D (staging) failed: hresult=0x%x", uint32(ret))
	}
	s.staging = staging
	return nil
}

// BlitFrom stretches renderTarget (already-rasterized BGRA8 bytes from the
// host's backbuffer) into the CPU-visible mirror, which is what ReadCPU
// serves. It is a same-size byte copy with no scaling, and s.texture itself
// is not written.
func (s *windowsSurface) BlitFrom(renderTarget []byte, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width != s.width || height != s.height {
		return fmt.Errorf("blit dimension mismatch: got %dx%d, want %dx%d", width, height, s.width, s.height)
	}
	n := copy(s.cpuBuf, renderTarget)
	if n < len(s.cpuBuf) {
		return fmt.Errorf("blit source truncated: got %d bytes, want %d", len(renderTarget), len(s.cpuBuf))
	}
	return nil
}

func (s *windowsSurface) ReadCPU() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.cpuBuf))
	copy(out, s.cpuBuf)
	return out, nil
}

func (s *windowsSurface) Close() error {
	return nil
}
