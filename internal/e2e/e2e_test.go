package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"inferd/internal/backend"
	"inferd/internal/httpapi"
	"inferd/internal/registry"
	"inferd/internal/service"
	"inferd/pkg/types"
)

type echoBackend struct {
	loaded bool
}

func (e *echoBackend) Name() string { return "e2e-echo" }
func (e *echoBackend) Loaded() bool { return e.loaded }

func (e *echoBackend) LoadModel(path string, gpuLayers int) error {
	e.loaded = true
	return nil
}

func (e *echoBackend) Unload() error {
	e.loaded = false
	return nil
}

func (e *echoBackend) Generate(ctx context.Context, prompt string, p backend.Params, onToken func(string) error) (backend.Result, error) {
	tokens := []string{"echo:", " ", prompt}
	for _, tok := range tokens {
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return backend.Result{}, err
			}
		}
	}
	return backend.Result{Content: "echo: " + prompt, Tokens: len(tokens), FinishReason: "stop"}, nil
}

// createTempModelsDir populates a temp directory with minimal valid GGUF
// files and returns the directory plus the model IDs (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	header := append([]byte("GGUF"), 3, 0, 0, 0)
	header = append(header, make([]byte, 16)...)
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), header, 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", n, err)
		}
	}
	return dir, names
}

// newServerForDir wires the full stack the daemon runs in production:
// directory discovery, service, HTTP mux. Only the llama runtime is
// replaced by an in-process echo backend.
func newServerForDir(t *testing.T, modelsDir, defaultModel string) *httptest.Server {
	t.Helper()
	backend.Register("e2e-echo", func() backend.Backend { return &echoBackend{} })
	models, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("load models: %v", err)
	}
	svc, err := service.New(models, service.Config{Backend: "e2e-echo", DefaultModel: defaultModel})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func TestE2E_Models_Generate_Ready_Status(t *testing.T) {
	dir, names := createTempModelsDir(t, "alpha.gguf", "beta.gguf")
	srv := newServerForDir(t, dir, names[0])

	resp, body := httpGet(t, srv.URL+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models status=%d body=%s", resp.StatusCode, body)
	}
	var modelsResp types.ModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		t.Fatalf("/models json: %v body=%s", err, body)
	}
	if len(modelsResp.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(modelsResp.Models))
	}

	resp, _ = httpGet(t, srv.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz expected 200 after init, got %d", resp.StatusCode)
	}

	resp, body = httpPostJSON(t, srv.URL+"/generate", []byte(`{"prompt":"hello"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/generate status=%d body=%s", resp.StatusCode, body)
	}
	var gen types.GenerateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		t.Fatalf("/generate json: %v body=%s", err, body)
	}
	if gen.Content != "echo: hello" {
		t.Fatalf("content = %q", gen.Content)
	}

	resp, body = httpGet(t, srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status status=%d body=%s", resp.StatusCode, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v body=%s", err, body)
	}
	if st.Backend != "e2e-echo" || !st.Initialized || !st.ModelLoaded {
		t.Fatalf("status = %+v", st)
	}
	if filepath.Base(st.ModelPath) != "alpha.gguf" {
		t.Fatalf("model_path = %q", st.ModelPath)
	}
}

func TestE2E_GenerateStream_NDJSON(t *testing.T) {
	dir, names := createTempModelsDir(t, "alpha.gguf")
	srv := newServerForDir(t, dir, names[0])

	resp, body := httpPostJSON(t, srv.URL+"/generate/stream", []byte(`{"prompt":"hi"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/generate/stream status=%d body=%s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/x-ndjson") {
		t.Fatalf("content type = %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 3 token lines and a terminal line, got %d: %q", len(lines), body)
	}
	var tokens []string
	sawDone := false
	for _, ln := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", ln, err)
		}
		if tok, ok := m["token"].(string); ok {
			tokens = append(tokens, tok)
		}
		if done, _ := m["done"].(bool); done {
			sawDone = true
			if c, _ := m["content"].(string); c != "echo: hi" {
				t.Fatalf("terminal content = %q", c)
			}
		}
	}
	if !sawDone {
		t.Fatal("missing terminal line")
	}
	if got := strings.Join(tokens, ""); got != "echo: hi" {
		t.Fatalf("streamed tokens = %q", got)
	}
}

func TestE2E_UnknownModel404(t *testing.T) {
	dir, names := createTempModelsDir(t, "alpha.gguf")
	srv := newServerForDir(t, dir, names[0])

	resp, body := httpPostJSON(t, srv.URL+"/generate", []byte(`{"prompt":"hi","model":"nope.gguf"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", resp.StatusCode, body)
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatalf("error json: %v body=%s", err, body)
	}
	if er.Error == "" {
		t.Fatal("empty error message")
	}
}

func TestE2E_ScanDuplicates(t *testing.T) {
	dir, names := createTempModelsDir(t, "alpha.gguf")
	srv := newServerForDir(t, dir, names[0])

	scanRoot := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(scanRoot, n), []byte("same payload"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(scanRoot, "c.txt"), []byte("different"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	payload, _ := json.Marshal(types.ScanRequest{Root: scanRoot})
	resp, body := httpPostJSON(t, srv.URL+"/scan/duplicates", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/scan/duplicates status=%d body=%s", resp.StatusCode, body)
	}
	var report types.DuplicateReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("report json: %v body=%s", err, body)
	}
	if len(report.Groups) != 1 || len(report.Groups[0].Paths) != 2 {
		t.Fatalf("report = %+v", report)
	}
}
