//go:build !windows

package scan

import "golang.org/x/sys/unix"

// removeFile unlinks path directly, bypassing os.Remove's extra stat on
// some platforms. On Unix any byte sequence is a legal file name, so no
// path rewriting is needed.
func removeFile(path string) error {
	return unix.Unlink(path)
}
