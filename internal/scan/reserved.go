package scan

import (
	"io/fs"
	"strings"

	"inferd/pkg/types"
)

// reservedNames are Windows device names that cannot be addressed through
// normal path APIs once they exist as files. Matching is exact and ASCII
// case-insensitive, against the whole file name.
var reservedNames = map[string]struct{}{
	"nul": {}, "con": {}, "prn": {}, "aux": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// IsReservedName reports whether name is a reserved device file name.
func IsReservedName(name string) bool {
	_, ok := reservedNames[strings.ToLower(name)]
	return ok
}

// CleanReserved walks root and deletes every file whose name is reserved,
// using the lowest-level removal primitive so names the standard path
// layer normalizes away can still be targeted.
func (s *Scanner) CleanReserved(root string) (types.ScanStats, error) {
	return s.Run(root,
		func(_ string, d fs.DirEntry) bool { return IsReservedName(d.Name()) },
		func(path string, _ fs.DirEntry) error { return removeFile(path) },
	)
}
