package extensions

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/lumenforge/capturecore/internal/cvar"
)

func TestDiscoverOnMissingDirectoryIsNotAnError(t *testing.T) {
	h := NewHost(filepath.Join(t.TempDir(), "does-not-exist"), cvar.New(), nil)
	if err := h.Discover(); err != nil {
		t.Fatalf("Discover() on a missing directory should be a no-op, got error = %v", err)
	}
	if len(h.List()) != 0 {
		t.Errorf("List() = %d records, want 0", len(h.List()))
	}
}

func TestApplyOrderPrioritizesOrderJSON(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a" + moduleExt, "b" + moduleExt, "c" + moduleExt}
	for _, n := range names {
		os.WriteFile(filepath.Join(dir, n), nil, 0o644)
	}
	os.WriteFile(filepath.Join(dir, "Order.json"), []byte(`["c","a"]`), 0o644)

	ordered := applyOrder(dir, names)
	want := []string{"c" + moduleExt, "a" + moduleExt, "b" + moduleExt}
	if len(ordered) != len(want) {
		t.Fatalf("applyOrder() = %v, want %v", ordered, want)
	}
	for i := range want {
		if ordered[i] != want[i] {
			t.Errorf("applyOrder()[%d] = %q, want %q", i, ordered[i], want[i])
		}
	}
}

func TestApplyOrderWithoutOrderFileIsUnchanged(t *testing.T) {
	dir := t.TempDir()
	names := []string{"x" + moduleExt, "y" + moduleExt}
	ordered := applyOrder(dir, names)
	if len(ordered) != 2 || ordered[0] != names[0] || ordered[1] != names[1] {
		t.Errorf("applyOrder() without Order.json = %v, want unchanged %v", ordered, names)
	}
}

func TestIsModuleFileMatchesPlatformExtension(t *testing.T) {
	if !isModuleFile("thing" + moduleExt) {
		t.Errorf("isModuleFile(thing%s) = false, want true", moduleExt)
	}
	if isModuleFile("thing.txt") {
		t.Error("isModuleFile(thing.txt) = true, want false")
	}
}

func TestDispatchConfigRoutesByNamespacePrefix(t *testing.T) {
	h := NewHost("", cvar.New(), nil)
	handled := false
	h.records = []*Record{
		{
			Key:       "k1",
			Namespace: "myext_",
			Callbacks: Callbacks{
				ConfigHandler: func(key, value string) bool {
					handled = true
					return key == "myext_setting"
				},
			},
		},
	}

	if !h.DispatchConfig("myext_setting", "1") {
		t.Error("DispatchConfig should route to the matching-namespace handler and report handled")
	}
	if !handled {
		t.Error("the extension's ConfigHandler was never called")
	}

	if h.DispatchConfig("other_setting", "1") {
		t.Error("DispatchConfig should not match a non-prefixed key")
	}
}

func TestEnumerateExtensionsExcludesSelf(t *testing.T) {
	h := NewHost("", cvar.New(), nil)
	self := &Record{Key: "self", Namespace: "self_ns"}
	other := &Record{Key: "other", Namespace: "other_ns"}
	h.records = []*Record{self, other}

	imports := &ImportData{host: h, registry: h.registry, self: self}
	list := imports.EnumerateExtensions()
	if len(list) != 1 || list[0].Namespace != "other_ns" {
		t.Errorf("EnumerateExtensions() = %+v, want only other_ns", list)
	}
}

func TestNewVideoFrameFansOutToEveryRecord(t *testing.T) {
	h := NewHost("", cvar.New(), nil)
	var calls atomic.Int32
	h.records = []*Record{
		{Key: "a", Callbacks: Callbacks{NewVideoFrame: func(planes [][]byte) { calls.Add(1) }}},
		{Key: "b", Callbacks: Callbacks{}}, // no callback registered: must be skipped, not panic
		{Key: "c", Callbacks: Callbacks{NewVideoFrame: func(planes [][]byte) { calls.Add(1) }}},
	}
	h.NewVideoFrame([][]byte{{1, 2, 3}})
	if got := calls.Load(); got != 2 {
		t.Errorf("NewVideoFrame fanned out to %d callbacks, want 2", got)
	}
}
