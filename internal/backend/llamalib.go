package backend

import (
	"context"
	"errors"
	"sync"

	"inferd/internal/nativelib"
)

func init() {
	shim := nativelib.NewShim(nil)
	Register("llamalib", func() Backend { return &libBackend{shim: shim} })
}

// libBackend drives a llama runtime living in a separately built shared
// library, bound at first use through the interop shim. It needs no cgo
// in this binary; the native side carries the heavy math.
type libBackend struct {
	shim *nativelib.Shim

	mu     sync.Mutex // guards lib and loaded; Loaded is polled from /status
	lib    *nativelib.Library
	loaded bool
}

func (b *libBackend) Name() string { return "llamalib" }

func (b *libBackend) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// library memoizes the shim lookup and converts loader failures into the
// dependency-unavailable condition so the HTTP layer can answer 503.
func (b *libBackend) library() (*nativelib.Library, error) {
	b.mu.Lock()
	memo := b.lib
	b.mu.Unlock()
	if memo != nil {
		return memo, nil
	}
	lib, err := b.shim.Library()
	if err != nil {
		if errors.Is(err, nativelib.ErrLibraryUnavailable) {
			return nil, ErrDependencyUnavailable(err.Error())
		}
		return nil, err
	}
	if err := lib.Init("llamacpp"); err != nil {
		return nil, translateCallError(err)
	}
	b.mu.Lock()
	b.lib = lib
	b.mu.Unlock()
	return lib, nil
}

func (b *libBackend) LoadModel(path string, gpuLayers int) error {
	lib, err := b.library()
	if err != nil {
		return err
	}
	if err := lib.LoadModel(path, gpuLayers); err != nil {
		return translateCallError(err)
	}
	b.mu.Lock()
	b.loaded = true
	b.mu.Unlock()
	return nil
}

func (b *libBackend) Unload() error {
	b.mu.Lock()
	lib := b.lib
	b.lib = nil
	b.loaded = false
	b.mu.Unlock()
	if lib != nil {
		lib.Release()
	}
	return nil
}

func (b *libBackend) Generate(ctx context.Context, prompt string, p Params, onToken func(string) error) (Result, error) {
	lib, err := b.library()
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	maxTokens := uint32(p.MaxTokens)
	if onToken == nil {
		text, err := lib.Generate(prompt, maxTokens, p.Temperature)
		if err != nil {
			return Result{}, translateCallError(err)
		}
		return Result{Content: text, FinishReason: "stop"}, nil
	}

	var (
		content string
		tokens  int
		cbErr   error
	)
	err = lib.GenerateStreaming(prompt, maxTokens, p.Temperature, func(tok string) {
		if cbErr != nil {
			return
		}
		tokens++
		content += tok
		cbErr = onToken(tok)
	})
	if err != nil {
		return Result{}, translateCallError(err)
	}
	if cbErr != nil {
		return Result{}, cbErr
	}
	reason := "stop"
	if p.MaxTokens > 0 && tokens >= p.MaxTokens {
		reason = "length"
	}
	return Result{Content: content, Tokens: tokens, FinishReason: reason}, nil
}

// translateCallError maps the shim's raw status into the session's typed
// taxonomy without reinterpreting the native message.
func translateCallError(err error) error {
	var ce *nativelib.CallError
	if !errors.As(err, &ce) {
		return err
	}
	code := Status(ce.Code)
	if code >= StatusOK || code < StatusUnknown {
		code = StatusUnknown
	}
	return &StatusError{Code: code, Message: ce.Message}
}
