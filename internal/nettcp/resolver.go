//go:build unix

package nettcp

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// candidate is one (address family, socket address) tuple the engine
// will try in order — the Go expression of spec §6's "Address resolver"
// external contract: "given a numeric host string and port string,
// yields a sequence of (family, socktype=stream, protocol=tcp,
// sockaddr, addrlen) tuples". DNS lookup itself is the true external
// collaborator (the kernel/libc resolver); this is the front-end that
// turns its answer into candidates the socket layer can try.
type candidate struct {
	family   int
	sockaddr unix.Sockaddr
}

// resolveCandidates resolves addr into an ordered list of candidates.
// addr == nil means "any local address" (used for listening); a
// non-nil addr with a nil IP means "wildcard on that port".
func resolveCandidates(addr *net.TCPAddr) ([]candidate, error) {
	if addr == nil {
		addr = &net.TCPAddr{}
	}
	if addr.IP == nil || addr.IP.IsUnspecified() {
		return []candidate{
			{family: unix.AF_INET6, sockaddr: &unix.SockaddrInet6{Port: addr.Port}},
			{family: unix.AF_INET, sockaddr: &unix.SockaddrInet4{Port: addr.Port}},
		}, nil
	}

	if v4 := addr.IP.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], v4)
		sa.Port = addr.Port
		return []candidate{{family: unix.AF_INET, sockaddr: &sa}}, nil
	}

	v6 := addr.IP.To16()
	if v6 == nil {
		return nil, ErrAddrNotAvailable
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], v6)
	sa.Port = addr.Port
	if addr.Zone != "" {
		if iface, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(iface.Index)
		}
	}
	return []candidate{{family: unix.AF_INET6, sockaddr: &sa}}, nil
}

// resolvePeer turns a "host:port" string (spec §6's numeric host+port
// pair) into candidates by asking the stdlib resolver for every IP the
// host has, preserving the order the resolver returned them in. This is
// the one place the engine performs a blocking call — exactly where the
// original tcp.c's getaddrinfo() call is blocking too.
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

// sockaddrToTCPAddr converts a kernel sockaddr back to a *net.TCPAddr
// for local_address()/peer_address() queries.
func sockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, s.Addr[:])
		return &net.TCPAddr{IP: ip, Port: s.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		zone := ""
		if s.ZoneId != 0 {
			if iface, err := net.InterfaceByIndex(int(s.ZoneId)); err == nil {
				zone = iface.Name
			}
		}
		return &net.TCPAddr{IP: ip, Port: s.Port, Zone: zone}
	default:
		return nil
	}
}
