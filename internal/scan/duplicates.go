package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"inferd/pkg/types"
)

// FindDuplicates digests every file of at least minSize bytes under root
// with SHA-256 and groups identical contents. The stats record counts a
// file as matched once it has been digested; grouping happens after the
// walk from the collected digests.
func (s *Scanner) FindDuplicates(root string, minSize int64) (types.DuplicateReport, error) {
	start := time.Now()
	c := &dupCollector{byHash: make(map[string]*dupGroup)}

	stats, err := s.Run(root,
		func(_ string, d fs.DirEntry) bool { return d.Type().IsRegular() },
		func(path string, d fs.DirEntry) error {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if fi.Size() < minSize || fi.Size() == 0 {
				return SkipFile
			}
			sum, err := digestFile(path)
			if err != nil {
				return err
			}
			c.add(sum, fi.Size(), path)
			return nil
		},
	)
	if err != nil {
		return types.DuplicateReport{}, err
	}

	report := c.report()
	report.Stats = stats
	report.ElapsedMS = time.Since(start).Milliseconds()
	return report, nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type dupGroup struct {
	size  int64
	paths []string
}

// dupCollector accumulates digests from all workers. The map is the only
// shared mutable state in a duplicate scan and sits behind its own mutex;
// the walk counters stay lock-free.
type dupCollector struct {
	mu     sync.Mutex
	byHash map[string]*dupGroup
}

func (c *dupCollector) add(hash string, size int64, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.byHash[hash]
	if !ok {
		g = &dupGroup{size: size}
		c.byHash[hash] = g
	}
	g.paths = append(g.paths, path)
}

func (c *dupCollector) report() types.DuplicateReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep types.DuplicateReport
	for hash, g := range c.byHash {
		if len(g.paths) < 2 {
			continue
		}
		sort.Strings(g.paths)
		rep.Groups = append(rep.Groups, types.DuplicateGroup{
			Hash:  hash,
			Size:  g.size,
			Paths: append([]string(nil), g.paths...),
		})
		rep.DuplicateFiles += len(g.paths) - 1
		rep.WastedBytes += int64(len(g.paths)-1) * g.size
	}
	sort.Slice(rep.Groups, func(i, j int) bool { return rep.Groups[i].Hash < rep.Groups[j].Hash })
	rep.DuplicateGroups = len(rep.Groups)
	return rep
}
