//go:build !unix && !windows

package nettcp

import "fmt"

func errnoError(errno int) error {
	return fmt.Errorf("nettcp: socket error %d", errno)
}
