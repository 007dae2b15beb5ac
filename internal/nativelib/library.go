package nativelib

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// Library binds the native inference contract:
//
//	int   inferd_init(const char* backend_name)
//	int   inferd_load_model(const char* path, int gpu_layers)
//	char* inferd_generate(const char* prompt, unsigned max_tokens, float temperature)
//	int   inferd_generate_streaming(const char* prompt, unsigned max_tokens,
//	                                float temperature, callback, void* ctx)
//	void  inferd_release_backend(void)
//	char* inferd_last_error(void)          // borrowed
//	int   inferd_last_error_code(void)
//	void  inferd_free_string(char*)
//	int   inferd_is_initialized(void)
//	int   inferd_is_model_loaded(void)
//	char* inferd_get_backend_name(void)    // borrowed
//	char* inferd_version(void)             // borrowed
//
// All text crosses as null-terminated UTF-8. Generation results are owned
// strings released only through inferd_free_string; this type is the only
// code allowed to call it.
type Library struct {
	path   string
	handle uintptr

	initFn           func(string) int32
	loadModelFn      func(string, int32) int32
	generateFn       func(string, uint32, float32) uintptr
	generateStreamFn func(string, uint32, float32, uintptr, uintptr) int32
	releaseFn        func()
	lastErrorFn      func() uintptr
	lastErrorCodeFn  func() int32
	freeStringFn     func(uintptr)
	isInitializedFn  func() int32
	isModelLoadedFn  func() int32
	backendNameFn    func() uintptr
	versionFn        func() uintptr

	// One C-callable trampoline is created per Library (purego callbacks
	// are a finite resource). Generation is single-flight across the
	// boundary, so a single active sink is sufficient.
	trampoline uintptr
	sinkMu     sync.Mutex
	sink       func(string)
}

// Open loads and binds the shared library at path.
func Open(path string) (*Library, error) {
	handle, err := openLibrary(path)
	if err != nil {
		return nil, &loadError{cause: err}
	}
	l := &Library{path: path, handle: handle}
	if err := l.bind(); err != nil {
		closeLibrary(handle)
		return nil, &loadError{cause: err}
	}
	l.trampoline = purego.NewCallback(func(tok uintptr, _ uintptr) uintptr {
		l.sinkMu.Lock()
		sink := l.sink
		l.sinkMu.Unlock()
		if sink != nil {
			sink(goString(tok))
		}
		return 0
	})
	return l, nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string { return l.path }

// bind resolves every required symbol. A single absent symbol fails the
// whole load so callers see one "library unavailable" condition instead
// of late missing-symbol surprises.
func (l *Library) bind() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bind %s: %v", l.path, r)
		}
	}()
	purego.RegisterLibFunc(&l.initFn, l.handle, "inferd_init")
	purego.RegisterLibFunc(&l.loadModelFn, l.handle, "inferd_load_model")
	purego.RegisterLibFunc(&l.generateFn, l.handle, "inferd_generate")
	purego.RegisterLibFunc(&l.generateStreamFn, l.handle, "inferd_generate_streaming")
	purego.RegisterLibFunc(&l.releaseFn, l.handle, "inferd_release_backend")
	purego.RegisterLibFunc(&l.lastErrorFn, l.handle, "inferd_last_error")
	purego.RegisterLibFunc(&l.lastErrorCodeFn, l.handle, "inferd_last_error_code")
	purego.RegisterLibFunc(&l.freeStringFn, l.handle, "inferd_free_string")
	purego.RegisterLibFunc(&l.isInitializedFn, l.handle, "inferd_is_initialized")
	purego.RegisterLibFunc(&l.isModelLoadedFn, l.handle, "inferd_is_model_loaded")
	purego.RegisterLibFunc(&l.backendNameFn, l.handle, "inferd_get_backend_name")
	purego.RegisterLibFunc(&l.versionFn, l.handle, "inferd_version")
	return nil
}

// callError translates a non-zero status into a structured failure with
// the library's message attached verbatim.
func (l *Library) callError(code int32) error {
	return &CallError{Code: int(code), Message: BorrowedString(l.lastErrorFn()).String()}
}

// Init selects a backend inside the native library.
func (l *Library) Init(backend string) error {
	if rc := l.initFn(backend); rc != 0 {
		return l.callError(rc)
	}
	return nil
}

// LoadModel attaches model weights. gpuLayers: -1 auto, 0 CPU-only.
func (l *Library) LoadModel(path string, gpuLayers int) error {
	if rc := l.loadModelFn(path, int32(gpuLayers)); rc != 0 {
		return l.callError(rc)
	}
	return nil
}

// Generate runs a blocking generation and copies the owned result into Go
// memory, releasing the native buffer before returning.
func (l *Library) Generate(prompt string, maxTokens uint32, temperature float32) (string, error) {
	ptr := l.generateFn(prompt, maxTokens, temperature)
	if ptr == 0 {
		return "", l.callError(l.lastErrorCodeFn())
	}
	s := newOwnedString(ptr, l.freeStringFn)
	defer s.Close()
	return s.String(), nil
}

// GenerateStreaming runs a generation pushing each token through onToken.
// onToken is invoked from the native generation thread and must not block.
func (l *Library) GenerateStreaming(prompt string, maxTokens uint32, temperature float32, onToken func(string)) error {
	l.sinkMu.Lock()
	l.sink = onToken
	l.sinkMu.Unlock()
	defer func() {
		l.sinkMu.Lock()
		l.sink = nil
		l.sinkMu.Unlock()
	}()
	if rc := l.generateStreamFn(prompt, maxTokens, temperature, l.trampoline, 0); rc != 0 {
		return l.callError(rc)
	}
	return nil
}

// Release tears down the native backend. Safe to call repeatedly.
func (l *Library) Release() { l.releaseFn() }

// IsInitialized probes backend state without triggering a failing call.
func (l *Library) IsInitialized() bool { return l.isInitializedFn() != 0 }

// IsModelLoaded probes model state without triggering a failing call.
func (l *Library) IsModelLoaded() bool { return l.isModelLoadedFn() != 0 }

// BackendName returns the active backend name reported by the library.
func (l *Library) BackendName() string { return BorrowedString(l.backendNameFn()).String() }

// Version returns the library's version string.
func (l *Library) Version() string { return BorrowedString(l.versionFn()).String() }

// LastError returns the raw last-error code and message.
func (l *Library) LastError() (int, string) {
	return int(l.lastErrorCodeFn()), BorrowedString(l.lastErrorFn()).String()
}

// Close unloads the shared library. The Library must not be used after.
func (l *Library) Close() error {
	if l.handle != 0 {
		closeLibrary(l.handle)
		l.handle = 0
	}
	return nil
}

// Shim caches one loaded Library per process. After the first failed
// load, every subsequent call fails fast with the same consistent
// ErrLibraryUnavailable instead of retrying discovery.
type Shim struct {
	resolver *Resolver
	once     sync.Once
	lib      *Library
	err      error
}

// NewShim wraps a resolver; nil selects the default chain for "inferd".
func NewShim(r *Resolver) *Shim {
	if r == nil {
		r = NewResolver("inferd")
	}
	return &Shim{resolver: r}
}

// Library resolves and opens the shared library on first use.
func (s *Shim) Library() (*Library, error) {
	s.once.Do(func() {
		path, err := s.resolver.Resolve()
		if err != nil {
			s.err = &loadError{cause: err}
			return
		}
		s.lib, s.err = Open(path)
	})
	return s.lib, s.err
}
