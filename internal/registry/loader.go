package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/internal/gguf"
	"inferd/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a model registry.
// ID is the full filename (including extension); Path is the absolute file
// path. Metadata is enriched from the GGUF header when it parses cleanly;
// files with unreadable headers are still listed with filename-only info.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		p := filepath.Join(abs, name)
		m := types.Model{ID: name, Name: name, Path: p}
		if fi, err := e.Info(); err == nil {
			m.SizeBytes = fi.Size()
		}
		if info, err := gguf.ReadInfo(p); err == nil {
			m.Arch = info.Arch
			if info.Name != "" {
				m.Name = info.Name
			}
		}
		m.Quant = quantFromName(name)
		models = append(models, m)
	}
	return models, nil
}

// quantFromName extracts a quantization tag like "q4_k_m" from a filename.
func quantFromName(name string) string {
	base := strings.TrimSuffix(strings.ToLower(name), ".gguf")
	for _, part := range strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '.' }) {
		if len(part) >= 2 && part[0] == 'q' && part[1] >= '0' && part[1] <= '9' {
			return part
		}
	}
	return ""
}
