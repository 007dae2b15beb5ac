package nativelib

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func libTouch(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, LibraryFileName("inferd"))
	if err := os.WriteFile(p, []byte("\x7fELF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLibraryFileName(t *testing.T) {
	got := LibraryFileName("inferd")
	switch runtime.GOOS {
	case "windows":
		if got != "inferd.dll" {
			t.Fatalf("got %q", got)
		}
	case "darwin":
		if got != "libinferd.dylib" {
			t.Fatalf("got %q", got)
		}
	default:
		if got != "libinferd.so" {
			t.Fatalf("got %q", got)
		}
	}
}

func TestResolve_FirstProviderWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	wantPath := libTouch(t, first)
	libTouch(t, second)

	r := NewResolver("inferd", Dirs(first), Dirs(second))
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != wantPath {
		t.Fatalf("resolve = %q, want %q", got, wantPath)
	}
}

func TestResolve_FallsThroughEmptyProviders(t *testing.T) {
	hit := t.TempDir()
	wantPath := libTouch(t, hit)

	r := NewResolver("inferd",
		Dirs(),                 // no candidates at all
		Dirs(""),               // blank candidate skipped
		Dirs(t.TempDir()),      // exists but empty
		Dirs(hit),
	)
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != wantPath {
		t.Fatalf("resolve = %q, want %q", got, wantPath)
	}
}

func TestResolve_DirectoryWithLibraryNameRejected(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, LibraryFileName("inferd")), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r := NewResolver("inferd", Dirs(dir))
	if _, err := r.Resolve(); err == nil {
		t.Fatal("directory accepted as library")
	}
}

func TestResolve_MissReportsTriedPaths(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	r := NewResolver("inferd", Dirs(a), Dirs(b))
	_, err := r.Resolve()
	if err == nil {
		t.Fatal("expected miss")
	}
	msg := err.Error()
	if !strings.Contains(msg, a) || !strings.Contains(msg, b) {
		t.Fatalf("miss does not list tried paths: %s", msg)
	}
}

func TestEnvDirProvider(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDirVar, dir)
	got := EnvDir(EnvDirVar).Candidates()
	if len(got) != 1 || got[0] != dir {
		t.Fatalf("candidates = %v", got)
	}
	t.Setenv(EnvDirVar, "")
	if got := EnvDir(EnvDirVar).Candidates(); got != nil {
		t.Fatalf("unset env should yield nil, got %v", got)
	}
}

func TestDefaultProviders_Order(t *testing.T) {
	ps := DefaultProviders()
	if len(ps) != 4 {
		t.Fatalf("expected 4 providers, got %d", len(ps))
	}
	// first provider is the executable's own directory
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("no executable path: %v", err)
	}
	first := ps[0].Candidates()
	if len(first) != 1 || first[0] != filepath.Dir(exe) {
		t.Fatalf("first provider = %v", first)
	}
	second := ps[1].Candidates()
	if len(second) != 1 || second[0] != filepath.Join(filepath.Dir(exe), "lib") {
		t.Fatalf("second provider = %v", second)
	}
}
