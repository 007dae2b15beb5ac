package backend

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"inferd/internal/gguf"
)

// Request bounds. Violations are caller errors, never backend errors.
const (
	// MaxPromptBytes is the largest accepted prompt (100 KiB of UTF-8).
	MaxPromptBytes = 100 << 10
	// MaxTokensCeiling is the hard upper bound for max_tokens.
	MaxTokensCeiling = 4096
	// MaxTemperature bounds sampling temperature.
	MaxTemperature = 2.0
)

// Request is a single generation request against a session.
type Request struct {
	Prompt string
	Params
}

// ValidateRequest checks the request bounds locally, before anything
// reaches a backend.
func ValidateRequest(req Request) error {
	if req.Prompt == "" {
		return errInvalidInput("prompt is empty")
	}
	if len(req.Prompt) > MaxPromptBytes {
		return errInvalidInput(fmt.Sprintf("prompt exceeds %d bytes", MaxPromptBytes))
	}
	if !utf8.ValidString(req.Prompt) {
		return errInvalidInput("prompt is not valid UTF-8")
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxTokensCeiling {
		return errInvalidInput(fmt.Sprintf("max_tokens out of range [0,%d]", MaxTokensCeiling))
	}
	if req.Temperature < 0 || req.Temperature > MaxTemperature {
		return errInvalidInput("temperature out of range [0,2]")
	}
	return nil
}

// Session is an explicit, caller-owned inference session: init a backend,
// load a model, generate, release. It replaces the one-session-per-process
// singleton of older designs; callers may hold several independent
// sessions as long as each is used by one logical caller at a time.
//
// Generation is single-flight per session. Concurrent Generate calls on
// one session queue behind a capacity-1 gate rather than interleaving.
type Session struct {
	id string

	mu        sync.Mutex // guards the fields below
	backend   Backend
	modelPath string
	lastErr   *StatusError

	genCh chan struct{} // capacity 1: single in-flight generation
}

// NewSession returns an empty session. Init must be called before any
// other operation.
func NewSession() *Session {
	return &Session{
		id:    uuid.NewString(),
		genCh: make(chan struct{}, 1),
	}
}

// ID returns the session identifier assigned at construction.
func (s *Session) ID() string { return s.id }

// fail records err as the session's last error and returns it.
func (s *Session) fail(err error) error {
	se, ok := err.(*StatusError)
	if !ok {
		se = &StatusError{Code: CodeOf(err), Message: err.Error()}
	}
	s.mu.Lock()
	s.lastErr = se
	s.mu.Unlock()
	return se
}

// clearErr resets the last-error record after a successful operation.
func (s *Session) clearErr() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// LastError returns the status code and message of the most recent
// failing operation, or (StatusOK, "") when the last operation succeeded.
func (s *Session) LastError() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return StatusOK, ""
	}
	return s.lastErr.Code, s.lastErr.Message
}

// Init selects a compiled-in backend by name. Calling Init on an already
// initialized session fails; release first. Init is idempotent only in
// the sense that init→release→init works.
func (s *Session) Init(name string) error {
	s.mu.Lock()
	already := s.backend != nil
	s.mu.Unlock()
	if already {
		return s.fail(errInvalidInput("session already initialized: init is not re-entrant, release first"))
	}
	b, err := New(name)
	if err != nil {
		return s.fail(errInvalidInput(err.Error()))
	}
	s.mu.Lock()
	s.backend = b
	s.mu.Unlock()
	s.clearErr()
	return nil
}

// Initialized reports whether a backend is active.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend != nil
}

// BackendName returns the active backend name, or "" when uninitialized.
func (s *Session) BackendName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return ""
	}
	return s.backend.Name()
}

// ModelLoaded reports whether a model is attached. False until LoadModel
// succeeds, false again after Release.
func (s *Session) ModelLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend != nil && s.backend.Loaded()
}

// ModelPath returns the path of the attached model, or "".
func (s *Session) ModelPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelPath
}

// LoadModel validates the model file, then hands it to the backend.
// The path must exist and carry a plausible GGUF header before the
// runtime parses any weights.
func (s *Session) LoadModel(path string, gpuLayers int) error {
	s.mu.Lock()
	b := s.backend
	s.mu.Unlock()
	if b == nil {
		return s.fail(errNotInitialized("backend not initialized: call init first"))
	}
	if gpuLayers < -1 {
		return s.fail(errInvalidInput("gpu_layers must be -1 (auto), 0 (cpu) or positive"))
	}
	fi, err := os.Stat(path)
	if err != nil {
		return s.fail(errIO(fmt.Sprintf("model file not found: %s", path)))
	}
	if fi.IsDir() {
		return s.fail(errInvalidInput(fmt.Sprintf("model path is a directory: %s", path)))
	}
	if err := gguf.Validate(path); err != nil {
		return s.fail(errInvalidInput(fmt.Sprintf("not a loadable GGUF file: %v", err)))
	}
	// Hold the single-flight gate, like Release does, so a load never
	// swaps the model under an in-flight generation.
	s.genCh <- struct{}{}
	defer func() { <-s.genCh }()
	s.mu.Lock()
	b = s.backend
	s.mu.Unlock()
	if b == nil {
		return s.fail(errNotInitialized("backend not initialized: call init first"))
	}
	if err := b.LoadModel(path, gpuLayers); err != nil {
		// The backend contract guarantees no partial model remains.
		return s.fail(wrapBackendErr(err))
	}
	s.mu.Lock()
	s.modelPath = path
	s.mu.Unlock()
	s.clearErr()
	return nil
}

// acquireGen takes the single-flight gate, honoring ctx.
func (s *Session) acquireGen(ctx context.Context) error {
	select {
	case s.genCh <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) releaseGen() { <-s.genCh }

// checkGenerable verifies state and bounds common to both generate paths.
func (s *Session) checkGenerable(req Request) (Backend, error) {
	s.mu.Lock()
	b := s.backend
	s.mu.Unlock()
	if b == nil {
		return nil, errNotInitialized("backend not initialized: call init first")
	}
	if !b.Loaded() {
		return nil, errModelNotLoaded("no model loaded: call load_model first")
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return b, nil
}

// Generate runs a blocking generation and returns the complete text.
func (s *Session) Generate(ctx context.Context, req Request) (Result, error) {
	b, err := s.checkGenerable(req)
	if err != nil {
		return Result{}, s.fail(err)
	}
	if err := s.acquireGen(ctx); err != nil {
		return Result{}, s.fail(err)
	}
	defer s.releaseGen()
	res, err := b.Generate(ctx, req.Prompt, req.Params, nil)
	if err != nil {
		return Result{}, s.fail(wrapBackendErr(err))
	}
	s.clearErr()
	return res, nil
}

// GenerateStream starts a generation whose tokens are consumed through
// the returned TokenStream. The backend's synchronous callback runs on a
// dedicated goroutine; the stream decouples it from the consumer.
func (s *Session) GenerateStream(ctx context.Context, req Request) (*TokenStream, error) {
	b, err := s.checkGenerable(req)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.acquireGen(ctx); err != nil {
		return nil, s.fail(err)
	}
	st := newTokenStream()
	go func() {
		defer s.releaseGen()
		res, genErr := b.Generate(ctx, req.Prompt, req.Params, func(tok string) error {
			if !st.push(tok) {
				return errStreamClosed
			}
			return nil
		})
		if genErr != nil && genErr != errStreamClosed {
			genErr = wrapBackendErr(genErr)
			_ = s.fail(genErr)
			st.finish(Result{}, genErr)
			return
		}
		s.clearErr()
		st.finish(res, nil)
	}()
	return st, nil
}

// Release detaches the model and backend. Waits for any in-flight
// generation, then frees resources. Releasing a released (or never
// initialized) session is a no-op.
func (s *Session) Release() error {
	// Drain the single-flight gate so we never unload under a generation.
	s.genCh <- struct{}{}
	defer func() { <-s.genCh }()

	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.modelPath = ""
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	if b.Loaded() {
		if err := b.Unload(); err != nil {
			return s.fail(wrapBackendErr(err))
		}
	}
	s.clearErr()
	return nil
}

// wrapBackendErr classifies an error coming back from a backend: typed
// errors keep their code, dependency failures stay recognizable, the rest
// become backend errors with the native message attached verbatim.
func wrapBackendErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*StatusError); ok {
		return err
	}
	if IsDependencyUnavailable(err) {
		return err
	}
	if CodeOf(err) == StatusIOError {
		return errIO(err.Error())
	}
	return errBackend(err.Error())
}
