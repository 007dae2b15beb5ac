//go:build !llama

package backend

// This file provides a no-CGO stub for the in-process llama backend. It is
// compiled when the 'llama' build tag is NOT set, keeping default builds
// and CI CGO-free. The real backend lives in llama.go (tagged 'llama').

import "context"

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

func init() {
	Register("llamacpp", func() Backend { return &llamaStub{} })
}

// llamaStub satisfies Backend but refuses to run inference without the
// 'llama' build tag. No mocked behavior in production binaries.
type llamaStub struct{}

func (s *llamaStub) Name() string { return "llamacpp" }
func (s *llamaStub) Loaded() bool { return false }

func (s *llamaStub) LoadModel(path string, gpuLayers int) error {
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (s *llamaStub) Unload() error { return nil }

func (s *llamaStub) Generate(ctx context.Context, prompt string, p Params, onToken func(string) error) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}
	return Result{}, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
