//go:build !unix

package fsutil

import "os"

// access falls back to the owner permission bits where access(2) is unavailable.
func access(path string, write, execute bool) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mode := info.Mode().Perm()
	if write && mode&0o200 == 0 {
		return false
	}
	if execute && mode&0o100 == 0 {
		return false
	}
	return true
}
