package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateLogsWithZerologInfo(t *testing.T) {
	// Install a zerolog logger to exercise the zlog != nil branches
	SetLogger(zerolog.New(io.Discard))
	defer func() { zlog = nil }()

	svc := &fakeService{}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/generate?log=info", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with info logging, got %d", rec.Code)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	// Enable CORS temporarily
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	svc := &fakeService{ready: true}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", rec.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	SetMaxBodyBytes(64)
	defer SetMaxBodyBytes(0)

	svc := &fakeService{}
	h := NewMux(svc)
	big := `{"prompt":"` + strings.Repeat("x", 256) + `"}`
	rec := postJSON(t, h, "/generate", big)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
}

func TestGenerateStreamWithDebugLogging(t *testing.T) {
	svc := &fakeService{tokens: []string{"hi"}}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/generate/stream?log=debug", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with debug logging, got %d", rec.Code)
	}
}
