package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizeForLookup returns a canonical path for comparisons: absolute,
// with symlinks resolved, and lower-cased on case-insensitive systems.
func NormalizeForLookup(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	canonicalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// The path may not exist yet.
		canonicalPath = absPath
	}

	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return strings.ToLower(canonicalPath), nil
	}
	return canonicalPath, nil
}

// SamePath reports whether two paths refer to the same location. Paths that
// cannot be normalized never match.
func SamePath(path1, path2 string) bool {
	norm1, err := NormalizeForLookup(path1)
	if err != nil {
		return false
	}
	norm2, err := NormalizeForLookup(path2)
	if err != nil {
		return false
	}
	return norm1 == norm2
}
