//go:build windows

package scan

import (
	"strings"

	"golang.org/x/sys/windows"
)

// removeFile deletes path with DeleteFileW on an extended-length path.
// The \\?\ prefix disables Win32 path normalization, which is what makes
// reserved names like "nul" addressable at all, and lifts the MAX_PATH
// limit as a side effect.
func removeFile(path string) error {
	wide, err := windows.UTF16PtrFromString(extendedPath(path))
	if err != nil {
		return err
	}
	return windows.DeleteFile(wide)
}

func extendedPath(path string) string {
	switch {
	case strings.HasPrefix(path, `\\?\`):
		return path
	case strings.HasPrefix(path, `\\`):
		// UNC: \\server\share -> \\?\UNC\server\share
		return `\\?\UNC\` + path[2:]
	default:
		return `\\?\` + path
	}
}
