//go:build llama

package backend

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

func init() {
	Register("llamacpp", func() Backend { return newLlamaBackend(defaultCtxSize, 0) })
}

const defaultCtxSize = 4096

// llamaBackend runs llama.cpp in-process through cgo.
type llamaBackend struct {
	ctxSize int
	threads int

	mu    sync.Mutex
	model *llama.LLama
}

func newLlamaBackend(ctxSize, threads int) *llamaBackend {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaBackend{ctxSize: ctxSize, threads: threads}
}

func (b *llamaBackend) Name() string { return "llamacpp" }

func (b *llamaBackend) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model != nil
}

func (b *llamaBackend) LoadModel(path string, gpuLayers int) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(b.ctxSize),
	}
	switch {
	case gpuLayers < 0:
		// llama.cpp treats a very large layer count as "offload everything".
		mo = append(mo, llama.SetGPULayers(1<<30))
	case gpuLayers > 0:
		mo = append(mo, llama.SetGPULayers(gpuLayers))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		// llama.New frees its partial allocations on failure; nothing is
		// attached to this backend.
		return err
	}
	b.mu.Lock()
	if b.model != nil {
		b.model.Free()
	}
	b.model = m
	b.mu.Unlock()
	return nil
}

func (b *llamaBackend) Unload() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model != nil {
		b.model.Free()
		b.model = nil
	}
	return nil
}

func (b *llamaBackend) Generate(ctx context.Context, prompt string, p Params, onToken func(string) error) (Result, error) {
	b.mu.Lock()
	m := b.model
	b.mu.Unlock()
	if m == nil {
		return Result{}, errors.New("llama model not loaded")
	}

	var tokens int
	m.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		tokens++
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return false
			}
		}
		return true
	})
	text, err := m.Predict(prompt, predictOptions(p, b.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	reason := "stop"
	if p.MaxTokens > 0 && tokens >= p.MaxTokens {
		reason = "length"
	}
	return Result{Content: text, Tokens: tokens, FinishReason: reason}, nil
}

// predictOptions converts Params into go-llama.cpp options.
func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, p.MaxTokens)),
		llama.SetThreads(maxInt(1, threads)),
		llama.SetTemperature(float64(p.Temperature)),
	}
	if p.TopP > 0 {
		po = append(po, llama.SetTopP(float64(p.TopP)))
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(int(p.Seed)))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
