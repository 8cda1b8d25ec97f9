//go:build !windows

package extensions

import (
	"fmt"
	"plugin"
)

const moduleExt = ".so"

// moduleHandle wraps a loaded Go plugin. The Go plugin package has no
// Close/unload primitive; Close is a no-op kept only to satisfy the same
// shape as the Windows DLL handle.
type moduleHandle struct {
	p *plugin.Plugin
}

func loadModule(path string) (moduleHandle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return moduleHandle{}, fmt.Errorf("plugin.Open %s: %w", path, err)
	}
	return moduleHandle{p: p}, nil
}

func (m moduleHandle) Close() error {
	return nil
}

// resolveCallbacks looks up the Windows loader's export names, plus
// ExtensionNewVideoFrame and ExtensionConfigHandler, which that loader does
// not bind, as Go symbols instead of stdcall procs: an extension built for
// this platform exports vars of the corresponding function types.
func resolveCallbacks(m moduleHandle) (Callbacks, error) {
	var cb Callbacks

	querySym, err := m.p.Lookup("ExtensionQuery")
	if err != nil {
		return cb, fmt.Errorf("missing ExtensionQuery export: %w", err)
	}
	query, ok := querySym.(func() (string, error))
	if !ok {
		return cb, fmt.Errorf("ExtensionQuery has wrong signature")
	}
	cb.Query = query

	initSym, err := m.p.Lookup("ExtensionInit")
	if err != nil {
		return cb, fmt.Errorf("missing ExtensionInit export: %w", err)
	}
	initFn, ok := initSym.(func() error)
	if !ok {
		return cb, fmt.Errorf("ExtensionInit has wrong signature")
	}
	cb.Init = initFn

	if sym, err := m.p.Lookup("ExtensionReady"); err == nil {
		if fn, ok := sym.(func(*ImportData) error); ok {
			cb.Ready = fn
		}
	}
	if sym, err := m.p.Lookup("ExtensionStartMovie"); err == nil {
		if fn, ok := sym.(func() error); ok {
			cb.StartMovie = fn
		}
	}
	if sym, err := m.p.Lookup("ExtensionEndMovie"); err == nil {
		if fn, ok := sym.(func() error); ok {
			cb.EndMovie = fn
		}
	}
	if sym, err := m.p.Lookup("ExtensionNewVideoFrame"); err == nil {
		if fn, ok := sym.(func([][]byte)); ok {
			cb.NewVideoFrame = fn
		}
	}
	if sym, err := m.p.Lookup("ExtensionConfigHandler"); err == nil {
		if fn, ok := sym.(func(string, string) bool); ok {
			cb.ConfigHandler = fn
		}
	}

	return cb, nil
}
