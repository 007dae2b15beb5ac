// Package service ties the inference session, the model registry and the
// filesystem scan engine together behind the interface the HTTP layer
// consumes.
package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"inferd/internal/backend"
	"inferd/internal/scan"
	"inferd/pkg/types"
)

// Config carries the knobs the service needs at construction.
type Config struct {
	// Backend is the backend name passed to session init ("llamacpp",
	// "llamalib").
	Backend string
	// DefaultModel resolves requests that omit a model id.
	DefaultModel string
	// GPULayers is forwarded to model loads (-1 = offload everything).
	GPULayers int
	// ScanWorkers overrides the walker's worker count (0 = NumCPU).
	ScanWorkers int
}

// Service owns one inference session plus the scan engine. Model loads are
// lazy: the first generate against a model attaches it to the session.
type Service struct {
	cfg       Config
	sess      *backend.Session
	models    []types.Model
	startedAt time.Time
}

// New builds a service over the given registry and initializes the
// session's backend. An init failure is returned, not deferred; a daemon
// without a working backend should not come up as ready.
func New(models []types.Model, cfg Config) (*Service, error) {
	if cfg.Backend == "" {
		cfg.Backend = "llamacpp"
	}
	s := &Service{
		cfg:       cfg,
		sess:      backend.NewSession(),
		models:    models,
		startedAt: time.Now(),
	}
	if err := s.sess.Init(cfg.Backend); err != nil {
		return nil, fmt.Errorf("init backend %q: %w", cfg.Backend, err)
	}
	return s, nil
}

// Session exposes the underlying session for status reporting and tests.
func (s *Service) Session() *backend.Session { return s.sess }

// Close releases the session. Safe to call more than once.
func (s *Service) Close() error { return s.sess.Release() }

// ListModels returns the registry snapshot taken at startup.
func (s *Service) ListModels() []types.Model { return s.models }

// Ready reports whether the session survived init. Model load state does
// not gate readiness; loads are lazy.
func (s *Service) Ready() bool { return s.sess.Initialized() }

// Status assembles the live status report.
func (s *Service) Status() types.StatusResponse {
	code, msg := s.sess.LastError()
	now := time.Now()
	return types.StatusResponse{
		Backend:        s.sess.BackendName(),
		Initialized:    s.sess.Initialized(),
		ModelLoaded:    s.sess.ModelLoaded(),
		ModelPath:      s.sess.ModelPath(),
		SessionID:      s.sess.ID(),
		LastError:      msg,
		LastErrorCode:  int(code),
		UptimeSeconds:  int64(now.Sub(s.startedAt).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// resolveModel maps a request model id to a registry entry. Empty falls
// back to the configured default.
func (s *Service) resolveModel(id string) (types.Model, error) {
	if strings.TrimSpace(id) == "" {
		id = s.cfg.DefaultModel
		if id == "" {
			return types.Model{}, modelNotFoundError{id: "(unspecified)"}
		}
	}
	for _, m := range s.models {
		if m.ID == id {
			return m, nil
		}
	}
	return types.Model{}, modelNotFoundError{id: id}
}

// ensureLoaded attaches the requested model to the session if it is not
// the one already loaded.
func (s *Service) ensureLoaded(id string) error {
	m, err := s.resolveModel(id)
	if err != nil {
		return err
	}
	if s.sess.ModelLoaded() && s.sess.ModelPath() == m.Path {
		return nil
	}
	start := time.Now()
	if err := s.sess.LoadModel(m.Path, s.cfg.GPULayers); err != nil {
		return err
	}
	modelLoadSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func toParams(req types.GenerateRequest) backend.Params {
	return backend.Params{
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		Stop:        req.Stop,
		Seed:        req.Seed,
	}
}

// Generate runs a blocking generation and returns the complete result.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if err := s.ensureLoaded(req.Model); err != nil {
		observeGeneration("error", 0, 0)
		return types.GenerateResponse{}, err
	}
	start := time.Now()
	res, err := s.sess.Generate(ctx, backend.Request{Prompt: req.Prompt, Params: toParams(req)})
	if err != nil {
		observeGeneration("error", time.Since(start).Seconds(), 0)
		return types.GenerateResponse{}, err
	}
	observeGeneration("ok", time.Since(start).Seconds(), res.Tokens)
	return types.GenerateResponse{
		Content:      res.Content,
		Backend:      s.sess.BackendName(),
		FinishReason: res.FinishReason,
		Tokens:       res.Tokens,
	}, nil
}

// GenerateStream runs a generation and writes NDJSON to w: one
// {"token":...} line per token, then a terminal line with done=true. The
// terminal line is written exactly once, also on mid-stream failure.
func (s *Service) GenerateStream(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	if err := s.ensureLoaded(req.Model); err != nil {
		observeGeneration("error", 0, 0)
		return err
	}
	start := time.Now()
	st, err := s.sess.GenerateStream(ctx, backend.Request{Prompt: req.Prompt, Params: toParams(req)})
	if err != nil {
		observeGeneration("error", 0, 0)
		return err
	}
	defer st.Close()

	var wrote bool
	for {
		tok, err := st.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			observeGeneration("error", time.Since(start).Seconds(), 0)
			if !wrote {
				// Nothing sent yet: let the caller map this to a status code.
				return err
			}
			// Tokens already on the wire; terminate the stream in-band.
			return writeLine(w, flush, map[string]any{"done": true, "error": err.Error()})
		}
		if werr := writeLine(w, flush, tokenLine{Token: tok}); werr != nil {
			return werr
		}
		wrote = true
	}
	res, _ := st.Final()
	observeGeneration("ok", time.Since(start).Seconds(), res.Tokens)
	return writeLine(w, flush, doneLine{
		Done:         true,
		Content:      res.Content,
		FinishReason: res.FinishReason,
		Tokens:       res.Tokens,
	})
}

type tokenLine struct {
	Token string `json:"token"`
}

type doneLine struct {
	Done         bool   `json:"done"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Tokens       int    `json:"tokens"`
}

func writeLine(w io.Writer, flush func(), v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return err
	}
	if flush != nil {
		flush()
	}
	return nil
}

// ScanReserved deletes reserved-device-name files under the request root.
func (s *Service) ScanReserved(ctx context.Context, req types.ScanRequest) (types.ScanStats, error) {
	if err := ctx.Err(); err != nil {
		return types.ScanStats{}, err
	}
	sc := s.scanner(req.Workers)
	stats, err := sc.CleanReserved(req.Root)
	if err != nil {
		return types.ScanStats{}, invalidScanError{cause: err}
	}
	observeScan("reserved", stats)
	return stats, nil
}

// ScanDuplicates digests files under the request root and reports
// duplicate groups.
func (s *Service) ScanDuplicates(ctx context.Context, req types.ScanRequest) (types.DuplicateReport, error) {
	if err := ctx.Err(); err != nil {
		return types.DuplicateReport{}, err
	}
	sc := s.scanner(req.Workers)
	report, err := sc.FindDuplicates(req.Root, req.MinSize)
	if err != nil {
		return types.DuplicateReport{}, invalidScanError{cause: err}
	}
	observeScan("duplicates", report.Stats)
	return report, nil
}

func (s *Service) scanner(workers int) *scan.Scanner {
	if workers <= 0 {
		workers = s.cfg.ScanWorkers
	}
	return &scan.Scanner{Workers: workers}
}
