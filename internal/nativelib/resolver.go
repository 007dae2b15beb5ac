// Package nativelib loads the shared inference runtime at process start
// and is the single seam between Go code and the native call surface. It
// owns library discovery, UTF-8 marshaling, status translation and the
// release of native-owned strings; nothing else in the repository touches
// a raw native pointer.
package nativelib

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Provider yields candidate directories that may contain the shared
// library. Providers are consulted in order; the first directory holding
// a loadable library wins.
type Provider interface {
	Candidates() []string
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func() []string

func (f ProviderFunc) Candidates() []string { return f() }

// Resolver finds the shared library for a base name (e.g. "inferd" maps
// to libinferd.so / inferd.dll / libinferd.dylib) across an ordered
// provider chain.
type Resolver struct {
	base      string
	providers []Provider
}

// NewResolver builds a resolver over the given providers. With no
// providers the default chain is used.
func NewResolver(base string, providers ...Provider) *Resolver {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	return &Resolver{base: base, providers: providers}
}

// Resolve returns the first existing library path, or an error listing
// everywhere it looked.
func (r *Resolver) Resolve() (string, error) {
	file := LibraryFileName(r.base)
	var tried []string
	for _, p := range r.providers {
		for _, dir := range p.Candidates() {
			if dir == "" {
				continue
			}
			path := filepath.Join(dir, file)
			if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
				return path, nil
			}
			tried = append(tried, path)
		}
	}
	return "", fmt.Errorf("%s not found (tried %s)", file, strings.Join(tried, ", "))
}

// LibraryFileName maps a base name to the platform's shared library file name.
func LibraryFileName(base string) string {
	switch runtime.GOOS {
	case "windows":
		return base + ".dll"
	case "darwin":
		return "lib" + base + ".dylib"
	default:
		return "lib" + base + ".so"
	}
}

// EnvDirVar names the environment override consulted last in the default
// chain, pointing at a build output directory.
const EnvDirVar = "INFERD_LIB_DIR"

// DefaultProviders is the prioritized search order: next to the running
// executable, a conventional lib/ subfolder, well-known install
// directories, then the environment-designated build directory.
func DefaultProviders() []Provider {
	return []Provider{
		ExecutableDir(),
		ExecutableSubdir("lib"),
		InstallDirs(),
		EnvDir(EnvDirVar),
	}
}

// ExecutableDir yields the directory containing the current executable.
func ExecutableDir() Provider {
	return ProviderFunc(func() []string {
		exe, err := os.Executable()
		if err != nil {
			return nil
		}
		return []string{filepath.Dir(exe)}
	})
}

// ExecutableSubdir yields a subdirectory next to the executable.
func ExecutableSubdir(sub string) Provider {
	return ProviderFunc(func() []string {
		exe, err := os.Executable()
		if err != nil {
			return nil
		}
		return []string{filepath.Join(filepath.Dir(exe), sub)}
	})
}

// InstallDirs yields conventional system install locations.
func InstallDirs() Provider {
	return ProviderFunc(func() []string {
		if runtime.GOOS == "windows" {
			if pf := os.Getenv("ProgramFiles"); pf != "" {
				return []string{filepath.Join(pf, "inferd")}
			}
			return nil
		}
		return []string{"/usr/local/lib", "/opt/inferd/lib"}
	})
}

// EnvDir yields the directory named by an environment variable, if set.
func EnvDir(name string) Provider {
	return ProviderFunc(func() []string {
		if v := os.Getenv(name); v != "" {
			return []string{v}
		}
		return nil
	})
}

// Dirs is a fixed-directory provider, useful for tests and explicit config.
func Dirs(dirs ...string) Provider {
	return ProviderFunc(func() []string { return dirs })
}
