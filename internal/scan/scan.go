// Package scan is a parallel filesystem walker for bulk file operations:
// reserved-name cleanup and content-addressed duplicate detection. A
// worker pool sized to the CPU count shares a single work queue that idle
// workers pull pending directories from, so uneven subtrees do not leave
// workers starved. Aggregate counters are atomic; the final stats record
// is exact regardless of interleaving.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"inferd/pkg/types"
)

// SkipFile may be returned by an Action to record the entry as neither
// matched nor failed.
var SkipFile = errors.New("skip file")

// Predicate decides whether a file entry is of interest.
type Predicate func(path string, d fs.DirEntry) bool

// Action runs on every matched file. Errors count against the error
// counter and never abort the walk.
type Action func(path string, d fs.DirEntry) error

// Scanner configures a walk. The zero value walks with one worker per CPU.
type Scanner struct {
	// Workers overrides the pool size when positive.
	Workers int
}

func (s *Scanner) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// Run walks root, applying act to every file matching pred. Version
// control metadata (.git) is never descended into. Per-file errors are
// counted and the walk continues; only an unusable root is fatal.
func (s *Scanner) Run(root string, pred Predicate, act Action) (types.ScanStats, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return types.ScanStats{}, fmt.Errorf("resolve root: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return types.ScanStats{}, fmt.Errorf("scan root: %w", err)
	}
	if !fi.IsDir() {
		return types.ScanStats{}, fmt.Errorf("scan root is not a directory: %s", abs)
	}

	var scanned, matched, failures atomic.Uint32
	// The root itself counts as a visited entry, matching the walker
	// this engine replaces.
	scanned.Add(1)

	q := newWalkQueue()
	q.push(abs)

	g := new(errgroup.Group)
	for i := 0; i < s.workers(); i++ {
		g.Go(func() error {
			for {
				dir, ok := q.pop()
				if !ok {
					return nil
				}
				entries, err := os.ReadDir(dir)
				if err != nil {
					failures.Add(1)
					q.dirDone()
					continue
				}
				for _, e := range entries {
					scanned.Add(1)
					path := filepath.Join(dir, e.Name())
					if e.IsDir() {
						if e.Name() == ".git" {
							continue
						}
						q.push(path)
						continue
					}
					if !pred(path, e) {
						continue
					}
					switch err := act(path, e); {
					case err == nil:
						matched.Add(1)
					case errors.Is(err, SkipFile):
						// counted as scanned only
					default:
						failures.Add(1)
					}
				}
				q.dirDone()
			}
		})
	}
	_ = g.Wait() // workers only ever return nil; errors are counted

	return types.ScanStats{
		Scanned: scanned.Load(),
		Matched: matched.Load(),
		Errors:  failures.Load(),
	}, nil
}

// walkQueue is the shared directory queue. Pending directories are pushed
// by whichever worker discovers them and popped LIFO by whichever worker
// goes idle first, which keeps deep subtrees from pinning one worker.
type walkQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	dirs []string
	open int // directories queued or being processed
}

func newWalkQueue() *walkQueue {
	q := &walkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *walkQueue) push(dir string) {
	q.mu.Lock()
	q.dirs = append(q.dirs, dir)
	q.open++
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a directory is available or the walk has drained.
func (q *walkQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.dirs) == 0 && q.open > 0 {
		q.cond.Wait()
	}
	if len(q.dirs) == 0 {
		return "", false
	}
	d := q.dirs[len(q.dirs)-1]
	q.dirs = q.dirs[:len(q.dirs)-1]
	return d, true
}

// dirDone marks one directory fully processed; when the last one drains,
// every blocked worker is released.
func (q *walkQueue) dirDone() {
	q.mu.Lock()
	q.open--
	drained := q.open == 0 && len(q.dirs) == 0
	q.mu.Unlock()
	if drained {
		q.cond.Broadcast()
	}
}
