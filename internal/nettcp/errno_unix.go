//go:build unix

package nettcp

import "golang.org/x/sys/unix"

// errnoError turns a raw SO_ERROR value queried from the kernel (spec
// §4.3, checked first on every I/O event) into a Go error.
func errnoError(errno int) error {
	return unix.Errno(errno)
}
