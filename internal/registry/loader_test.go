package registry

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// ggufWithMeta builds a minimal GGUF v3 file carrying the given
// general.architecture and general.name metadata.
func ggufWithMeta(t *testing.T, arch, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("GGUF")
	le := binary.LittleEndian
	binary.Write(&buf, le, uint32(3)) // version
	binary.Write(&buf, le, uint64(0)) // tensor count
	binary.Write(&buf, le, uint64(2)) // kv count
	writeStr := func(s string) {
		binary.Write(&buf, le, uint64(len(s)))
		buf.WriteString(s)
	}
	writeStr("general.architecture")
	binary.Write(&buf, le, uint32(8)) // string value type
	writeStr(arch)
	writeStr("general.name")
	binary.Write(&buf, le, uint32(8))
	writeStr(name)
	return buf.Bytes()
}

func TestLoadDir_FiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	for _, m := range models {
		if !strings.HasSuffix(strings.ToLower(m.ID), ".gguf") {
			t.Fatalf("id not gguf: %s", m.ID)
		}
	}
}

func TestLoadDir_HeaderEnrichment(t *testing.T) {
	dir := t.TempDir()
	data := ggufWithMeta(t, "llama", "Tiny Llama")
	if err := os.WriteFile(filepath.Join(dir, "tiny-q4_k_m.gguf"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	m := models[0]
	if m.ID != "tiny-q4_k_m.gguf" {
		t.Fatalf("unexpected id: %s", m.ID)
	}
	if m.Arch != "llama" {
		t.Fatalf("arch not read from header: %q", m.Arch)
	}
	if m.Name != "Tiny Llama" {
		t.Fatalf("name not read from header: %q", m.Name)
	}
	if m.Quant != "q4_k_m" {
		t.Fatalf("quant not parsed from filename: %q", m.Quant)
	}
	if m.SizeBytes != int64(len(data)) {
		t.Fatalf("size mismatch: %d != %d", m.SizeBytes, len(data))
	}
}

func TestLoadDir_BadHeaderStillListed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.gguf"), []byte("NOPE"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 1 || models[0].ID != "broken.gguf" {
		t.Fatalf("unexpected: %+v", models)
	}
	if models[0].Arch != "" {
		t.Fatalf("expected empty arch for unreadable header, got %q", models[0].Arch)
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "inferd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}
