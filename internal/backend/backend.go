// Package backend hosts the local inference engine: a capability surface
// over interchangeable runtimes (in-process llama.cpp, a runtime-loaded
// shared library) plus the session object that owns lifecycle and error
// state. Heavy math stays in native code; this package owns the contract.
package backend

import (
	"context"
	"sort"
	"sync"
)

// Params captures generation parameters passed to a backend.
type Params struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	Stop        []string
	Seed        int64
}

// Result summarizes a completed generation.
type Result struct {
	Content      string
	Tokens       int
	FinishReason string
}

// Backend is the minimal runtime capability surface. Implementations are
// not required to be safe for concurrent Generate calls; the Session
// serializes access.
type Backend interface {
	// LoadModel attaches model weights to the backend. gpuLayers follows
	// the llama.cpp convention: -1 offloads as much as the runtime
	// supports, 0 keeps everything on CPU. A failed load must leave the
	// backend with no model attached.
	LoadModel(path string, gpuLayers int) error
	// Generate produces a completion for prompt. When onToken is non-nil
	// it is invoked synchronously once per token from the generation
	// thread; returning an error from onToken stops generation.
	Generate(ctx context.Context, prompt string, p Params, onToken func(string) error) (Result, error)
	// Unload detaches the current model, freeing its resources.
	Unload() error
	// Loaded reports whether a model is attached.
	Loaded() bool
	// Name identifies the backend implementation.
	Name() string
}

// Factory constructs a fresh backend instance.
type Factory func() Backend

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a backend constructible by name. Later registrations of
// the same name win, which lets tests install fakes.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// New constructs the named backend or reports it unknown.
func New(name string) (Backend, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, unknownBackendError{name: name}
	}
	return f(), nil
}

// Names lists the registered backends in stable order.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
