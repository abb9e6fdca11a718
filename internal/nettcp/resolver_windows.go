//go:build windows

package nettcp

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/sys/windows"
)

// candidate mirrors the unix-side type (see resolver.go) using the
// Windows sockaddr shapes from golang.org/x/sys/windows, which mirror
// the unix ones closely enough to share the rest of the engine's logic.
type candidate struct {
	family   int
	sockaddr windows.Sockaddr
}

func resolveCandidates(addr *net.TCPAddr) ([]candidate, error) {
	if addr == nil {
		addr = &net.TCPAddr{}
	}
	if addr.IP == nil || addr.IP.IsUnspecified() {
		return []candidate{
			{family: windows.AF_INET6, sockaddr: &windows.SockaddrInet6{Port: addr.Port}},
			{family: windows.AF_INET, sockaddr: &windows.SockaddrInet4{Port: addr.Port}},
		}, nil
	}
	if v4 := addr.IP.To4(); v4 != nil {
		var sa windows.SockaddrInet4
		copy(sa.Addr[:], v4)
		sa.Port = addr.Port
		return []candidate{{family: windows.AF_INET, sockaddr: &sa}}, nil
	}
	v6 := addr.IP.To16()
	if v6 == nil {
		return nil, ErrAddrNotAvailable
	}
	var sa windows.SockaddrInet6
	copy(sa.Addr[:], v6)
	sa.Port = addr.Port
	return []candidate{{family: windows.AF_INET6, sockaddr: &sa}}, nil
}

func resolvePeer(hostport string) ([]candidate, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, ErrInvalidArgument
	}
	if ip := net.ParseIP(host); ip != nil {
		return resolveCandidates(&net.TCPAddr{IP: ip, Port: port})
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
	if err != nil || len(addrs) == 0 {
		return nil, ErrAddrNotAvailable
	}
	var out []candidate
	for _, a := range addrs {
		cs, err := resolveCandidates(&net.TCPAddr{IP: a.IP, Port: port, Zone: a.Zone})
		if err != nil {
			continue
		}
		out = append(out, cs...)
	}
	if len(out) == 0 {
		return nil, ErrAddrNotAvailable
	}
	return out, nil
}

func sockaddrToTCPAddr(sa windows.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *windows.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, s.Addr[:])
		return &net.TCPAddr{IP: ip, Port: s.Port}
	case *windows.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		return &net.TCPAddr{IP: ip, Port: s.Port}
	default:
		return nil
	}
}
