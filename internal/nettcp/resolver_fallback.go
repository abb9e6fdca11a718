//go:build !unix && !windows

package nettcp

import "net"

// candidate is an unused placeholder on platforms this engine's socket
// layer does not support (see reactor_fallback.go); it exists only so
// the package's shared files referencing *candidate still type-check.
type candidate struct {
	family   int
	sockaddr any
}

func resolveCandidates(addr *net.TCPAddr) ([]candidate, error) { return nil, ErrAddrNotAvailable }
func resolvePeer(hostport string) ([]candidate, error)         { return nil, ErrAddrNotAvailable }
func sockaddrToTCPAddr(sa any) *net.TCPAddr                    { return nil }
