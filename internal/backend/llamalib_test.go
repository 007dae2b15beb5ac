package backend

import (
	"sync"
	"testing"

	"inferd/internal/nativelib"
)

func newUnresolvableLibBackend(t *testing.T) *libBackend {
	t.Helper()
	r := nativelib.NewResolver("inferd", nativelib.Dirs(t.TempDir()))
	return &libBackend{shim: nativelib.NewShim(r)}
}

func TestLibBackend_MissingLibraryIsDependencyUnavailable(t *testing.T) {
	b := newUnresolvableLibBackend(t)
	err := b.LoadModel("model.gguf", 0)
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency-unavailable, got %v", err)
	}
	if b.Loaded() {
		t.Fatal("backend reports loaded after a failed load")
	}
}

// Loaded is polled from /status while loads and unloads run; the state
// must stay consistent under concurrent access.
func TestLibBackend_ConcurrentStateAccess(t *testing.T) {
	b := newUnresolvableLibBackend(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Loaded()
				_ = b.LoadModel("model.gguf", 0)
				_ = b.Unload()
			}
		}()
	}
	wg.Wait()
	if b.Loaded() {
		t.Fatal("backend reports loaded after final unload")
	}
}
