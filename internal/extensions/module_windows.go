//go:build windows

package extensions

import (
	"fmt"
	"syscall"
	"unsafe"
)

const moduleExt = ".dll"

// moduleHandle wraps a loaded DLL, mirroring the LazyDLL binding style used
// elsewhere in this codebase for native interop rather than cgo.
type moduleHandle struct {
	dll *syscall.DLL
}

func loadModule(path string) (moduleHandle, error) {
	dll, err := syscall.LoadDLL(path)
	if err != nil {
		return moduleHandle{}, fmt.Errorf("LoadLibrary %s: %w", path, err)
	}
	return moduleHandle{dll: dll}, nil
}

func (m moduleHandle) Close() error {
	if m.dll == nil {
		return nil
	}
	return m.dll.Release()
}

// resolveCallbacks binds the extension's exported entry points by name. A
// real extension exports at minimum "ExtensionQuery" and "ExtensionInit";
// Ready, StartMovie and EndMovie are optional and left nil when the export
// is absent, matching the Design Notes' capability-record model.
// NewVideoFrame and ConfigHandler are never bound by this loader.
func resolveCallbacks(m moduleHandle) (Callbacks, error) {
	var cb Callbacks

	queryProc, err := m.dll.FindProc("ExtensionQuery")
	if err != nil {
		return cb, fmt.Errorf("missing ExtensionQuery export: %w", err)
	}
	initProc, err := m.dll.FindProc("ExtensionInit")
	if err != nil {
		return cb, fmt.Errorf("missing ExtensionInit export: %w", err)
	}

	cb.Query = func() (string, error) {
		return callStringProc(queryProc)
	}
	cb.Init = func() error {
		return callVoidProc(initProc)
	}

	if p, err := m.dll.FindProc("ExtensionReady"); err == nil {
		cb.Ready = func(imports *ImportData) error {
			return callVoidProc(p)
		}
	}
	if p, err := m.dll.FindProc("ExtensionStartMovie"); err == nil {
		cb.StartMovie = func() error { return callVoidProc(p) }
	}
	if p, err := m.dll.FindProc("ExtensionEndMovie"); err == nil {
		cb.EndMovie = func() error { return callVoidProc(p) }
	}

	return cb, nil
}

func callVoidProc(p *syscall.Proc) error {
	_, _, callErr := p.Call()
	if callErr != nil && callErr != syscall.Errno(0) {
		return callErr
	}
	return nil
}

func callStringProc(p *syscall.Proc) (string, error) {
	ret, _, callErr := p.Call()
	if callErr != nil && callErr != syscall.Errno(0) {
		return "", callErr
	}
	if ret == 0 {
		return "", fmt.Errorf("extension returned null namespace")
	}
	return goStringFromCString(ret), nil
}

// goStringFromCString reads a NUL-terminated ASCII string returned by a
// stdcall export as a uintptr-encoded char*.
func goStringFromCString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var buf []byte
	for i := 0; ; i++ {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(i)))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}
