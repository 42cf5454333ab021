//go:build unix

package fsutil

import "golang.org/x/sys/unix"

func access(path string, write, execute bool) bool {
	var mode uint32
	if write {
		mode |= unix.W_OK
	}
	if execute {
		mode |= unix.X_OK
	}
	return unix.Access(path, mode) == nil
}
