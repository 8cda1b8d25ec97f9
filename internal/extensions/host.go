// Package extensions implements §4.I's ExtensionHost: discovery, ordering,
// loading, and the ImportData capability surface handed to each extension.
package extensions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenforge/capturecore/internal/cvar"
	"github.com/lumenforge/capturecore/internal/engerr"
	"github.com/lumenforge/capturecore/internal/hostapi"
	"github.com/lumenforge/capturecore/internal/logging"
	"github.com/lumenforge/capturecore/internal/workerpool"
)

// callbackTimeout bounds how long the host waits for a round of extension
// callbacks before giving up on stragglers; extension code is third-party
// and must not be allowed to stall the movie session indefinitely.
const callbackTimeout = 5 * time.Second

var log = logging.L("extension-host")

// Key is a stable per-process identifier handed to an extension, distinct
// from its load-order index so EnumerateExtensions results stay valid even
// if extensions are hot-reloaded in a future revision.
type Key string

// Callbacks is the capability record an extension's module exposes. Missing
// entries are nil and skipped, matching the Design Notes' "function pointer
// tables as capability records" guidance.
type Callbacks struct {
	Query      func() (namespace string, err error)
	Init       func() error
	Ready      func(imports *ImportData) error
	StartMovie func() error
	EndMovie   func() error
	NewVideoFrame func(planes [][]byte)
	ConfigHandler func(key string, value string) (handled bool)
}

// Record is one loaded extension.
type Record struct {
	Key       Key
	Namespace string
	File      string
	Callbacks Callbacks

	handle moduleHandle
}

// ImportData is the capability surface passed to each extension's Ready
// callback: typed cvar creation/lookup, host device access, recording-state
// query, and enumeration of sibling extensions. It offers no console
// command registration, command-argument parsing, or wall-clock query.
type ImportData struct {
	host     *Host
	registry *cvar.Registry
	self     *Record
}

// CreateBool registers a boolean cvar and returns an opaque key for reads.
func (d *ImportData) CreateBool(name string, def bool) string {
	d.registry.RegisterBool(name, def)
	return name
}

// CreateNumber registers an unbounded numeric cvar.
func (d *ImportData) CreateNumber(name string, def float64) string {
	d.registry.RegisterNumber(name, def)
	return name
}

// CreateNumberMin registers a floored numeric cvar.
func (d *ImportData) CreateNumberMin(name string, def, min float64) string {
	d.registry.RegisterNumberMin(name, def, min)
	return name
}

// CreateNumberMinMax registers a bounded numeric cvar.
func (d *ImportData) CreateNumberMinMax(name string, def, min, max float64) string {
	d.registry.RegisterNumberMinMax(name, def, min, max)
	return name
}

// CreateNumberMinMaxString registers a bounded numeric cvar with a string
// representation.
func (d *ImportData) CreateNumberMinMaxString(name string, def, min, max float64) string {
	d.registry.RegisterNumberMinMaxString(name, def, min, max)
	return name
}

// ReadBool reads a cvar by its opaque key (the name returned from Create*).
func (d *ImportData) ReadBool(key string) bool { return d.registry.Bool(key) }

// ReadNumber reads a numeric cvar by opaque key.
func (d *ImportData) ReadNumber(key string) float64 { return d.registry.Number(key) }

// ReadNamedNumber reads any externally-named cvar, including ones this
// extension did not itself register.
func (d *ImportData) ReadNamedNumber(name string) float64 { return d.registry.Number(name) }

// ReadNamedString reads any externally-named string cvar.
func (d *ImportData) ReadNamedString(name string) string { return d.registry.String(name) }

// DeviceHandle returns the host's render device handle.
func (d *ImportData) DeviceHandle() uintptr {
	if d.host.renderHost == nil {
		return 0
	}
	return d.host.renderHost.DeviceHandle()
}

// IsRecording reports whether a movie session is currently active.
func (d *ImportData) IsRecording() bool {
	return d.host.recording()
}

// EnumerateExtensions lists every other loaded extension's namespace and
// Key, in load order, matching the original's extension-iteration API.
func (d *ImportData) EnumerateExtensions() []struct {
	Key       Key
	Namespace string
} {
	var out []struct {
		Key       Key
		Namespace string
	}
	for _, r := range d.host.records {
		if r.Key == d.self.Key {
			continue
		}
		out = append(out, struct {
			Key       Key
			Namespace string
		}{r.Key, r.Namespace})
	}
	return out
}

// Host discovers, orders, loads, and calls extensions, and vends their
// ImportData.
type Host struct {
	dir      string
	registry *cvar.Registry

	renderHost hostapi.RenderHost
	records    []*Record

	isRecording func() bool
}

// NewHost constructs a host rooted at enabledDir (normally
// "Extensions/Enabled").
func NewHost(enabledDir string, registry *cvar.Registry, renderHost hostapi.RenderHost) *Host {
	return &Host{dir: enabledDir, registry: registry, renderHost: renderHost}
}

func (h *Host) recording() bool {
	if h.isRecording == nil {
		return false
	}
	return h.isRecording()
}

// SetRecordingQuery lets MovieSession report its current state to
// extensions via ImportData.IsRecording without an import cycle.
func (h *Host) SetRecordingQuery(f func() bool) {
	h.isRecording = f
}

// Discover scans the enabled directory for extension libraries, applies
// Order.json if present, loads each one, and calls Query+Init. A failure
// in any single extension's Query/Init is an ExtensionError: that
// extension is skipped and reported, the host proceeds with the rest.
func (h *Host) Discover() error {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return engerr.Wrap(engerr.Config, "read extensions directory", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isModuleFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	files = applyOrder(h.dir, files)

	for _, name := range files {
		rec, err := h.loadOne(filepath.Join(h.dir, name))
		if err != nil {
			log.Warn("extension failed to load, skipped", "file", name, "error", err)
			continue
		}
		h.records = append(h.records, rec)
	}
	return nil
}

// applyOrder reorders names to match Extensions/Enabled/Order.json's
// filename list; unlisted extensions are appended in their discovery
// (alphabetical) order, matching the ordering rule in §4.I.
func applyOrder(dir string, names []string) []string {
	data, err := os.ReadFile(filepath.Join(dir, "Order.json"))
	if err != nil {
		return names
	}
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		log.Warn("Order.json malformed, ignoring", "error", err)
		return names
	}

	var ordered []string
	used := make(map[string]bool)
	for _, want := range order {
		for _, n := range names {
			if stemOf(n) == want && !used[n] {
				ordered = append(ordered, n)
				used[n] = true
				break
			}
		}
	}
	for _, n := range names {
		if !used[n] {
			ordered = append(ordered, n)
		}
	}
	return ordered
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (h *Host) loadOne(path string) (*Record, error) {
	handle, err := loadModule(path)
	if err != nil {
		return nil, engerr.Wrap(engerr.Extension, "load module", err)
	}

	callbacks, err := resolveCallbacks(handle)
	if err != nil {
		handle.Close()
		return nil, engerr.Wrap(engerr.Extension, "resolve exports", err)
	}
	if callbacks.Query == nil || callbacks.Init == nil {
		handle.Close()
		return nil, engerr.New(engerr.Extension, "missing required query/init export")
	}

	namespace, err := callbacks.Query()
	if err != nil {
		handle.Close()
		return nil, engerr.Wrap(engerr.Extension, "query failed", err)
	}
	if err := callbacks.Init(); err != nil {
		handle.Close()
		return nil, engerr.Wrap(engerr.Extension, "init failed", err)
	}

	return &Record{
		Key:       Key(uuid.NewString()),
		Namespace: namespace,
		File:      filepath.Base(path),
		Callbacks: callbacks,
		handle:    handle,
	}, nil
}

// Ready calls every loaded extension's Ready callback, each with its own
// ImportData, concurrently and isolated from one another's panics.
func (h *Host) Ready() {
	h.forEach(func(r *Record) error {
		if r.Callbacks.Ready == nil {
			return nil
		}
		return r.Callbacks.Ready(&ImportData{host: h, registry: h.registry, self: r})
	})
}

// StartMovie fires the start-movie callback on every extension.
func (h *Host) StartMovie() {
	h.forEach(func(r *Record) error {
		if r.Callbacks.StartMovie == nil {
			return nil
		}
		return r.Callbacks.StartMovie()
	})
}

// EndMovie fires the end-movie callback on every extension.
func (h *Host) EndMovie() {
	h.forEach(func(r *Record) error {
		if r.Callbacks.EndMovie == nil {
			return nil
		}
		return r.Callbacks.EndMovie()
	})
}

// NewVideoFrame fires the new-video-frame callback with the frame's planes,
// fanned out across every extension concurrently.
func (h *Host) NewVideoFrame(planes [][]byte) {
	h.forEach(func(r *Record) error {
		if r.Callbacks.NewVideoFrame == nil {
			return nil
		}
		r.Callbacks.NewVideoFrame(planes)
		return nil
	})
}

// DispatchConfig routes a config key to the first extension whose
// registered namespace prefixes it and whose handler returns handled=true.
func (h *Host) DispatchConfig(key, value string) bool {
	for _, r := range h.records {
		if r.Callbacks.ConfigHandler == nil {
			continue
		}
		if !strings.HasPrefix(key, r.Namespace) {
			continue
		}
		if r.Callbacks.ConfigHandler(key, value) {
			return true
		}
	}
	return false
}

// forEach fans a callback out across every loaded extension on a bounded
// worker pool, so one extension blocking or panicking cannot stall or crash
// the others. Returns once every task has run or callbackTimeout elapses.
func (h *Host) forEach(f func(*Record) error) {
	if len(h.records) == 0 {
		return
	}

	pool := workerpool.New(len(h.records), len(h.records))
	for _, r := range h.records {
		r := r
		pool.Submit(func() {
			if err := f(r); err != nil {
				log.Warn("extension callback failed", "namespace", r.Namespace, "error", err)
			}
		})
	}

	pool.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	pool.Drain(ctx)
}

// List returns every loaded extension in load order, for
// sdr_extensions_list.
func (h *Host) List() []*Record {
	return h.records
}

// Close unloads every extension module, in reverse load order.
func (h *Host) Close() {
	for i := len(h.records) - 1; i >= 0; i-- {
		h.records[i].handle.Close()
	}
	h.records = nil
}

func isModuleFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == moduleExt
}
