//go:build windows

package nettcp

import "golang.org/x/sys/windows"

// errnoError turns a raw SO_ERROR value queried from the kernel into a
// Go error (spec §4.3).
func errnoError(errno int) error {
	return windows.Errno(errno)
}
