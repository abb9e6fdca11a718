//go:build unix

package nettcp

import (
	"net"

	"golang.org/x/sys/unix"
)

// sendRecvFlags carries MSG_NOSIGNAL on Linux so a write to a peer that
// has reset the connection returns EPIPE instead of raising SIGPIPE;
// BSD/Darwin instead set SO_NOSIGPIPE once at socket-creation time (see
// setNoSigpipe in socket_nosigpipe_bsd.go), so this stays 0 there.
var sendRecvFlags = platformSendRecvFlags()

func newStreamSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	setNoSigpipe(fd)
	setLingerZero(fd)
	return fd, nil
}

func setReuseAddr(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

func setLingerZero(fd int) {
	_ = unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0})
}

// bindSocket binds fd to the candidate's address.
func bindSocket(fd int, c candidate) error {
	return unix.Bind(fd, c.sockaddr)
}

func listenSocket(fd int, backlog int) error {
	return unix.Listen(fd, backlog)
}

// acceptSocket performs a non-blocking accept; a would-block result is
// reported via isWouldBlock(err). The accepted descriptor gets the same
// zero-linger/no-SIGPIPE treatment newStreamSocket gives an actively
// connected one (spec §4.1 step 2).
func acceptSocket(listenFD int) (int, *net.TCPAddr, error) {
	nfd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	setNoSigpipe(nfd)
	setLingerZero(nfd)
	return nfd, sockaddrToTCPAddr(sa), nil
}

// connectSocket starts a non-blocking connect. (false, nil) means the
// connect completed synchronously; (true, nil) means it is in flight
// (EINPROGRESS/EALREADY) and completion arrives via a writable event;
// any other error, EINTR included, is returned as (false, err).
func connectSocket(fd int, c candidate) (inProgress bool, err error) {
	err = unix.Connect(fd, c.sockaddr)
	if err == nil {
		return false, nil
	}
	switch err {
	case unix.EINPROGRESS, unix.EALREADY:
		return true, nil
	default:
		return false, err
	}
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

func isInterrupted(err error) bool { return err == unix.EINTR }

// socketError reads SO_ERROR: the kernel's per-socket pending-error
// query the engine consults first on every I/O event (spec §4.3).
func socketError(fd int) (int, error) {
	return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
}

func writeSocket(fd int, b []byte) (int, error) {
	return unix.Write(fd, b)
}

func sendSocket(fd int, b []byte) (int, error) {
	return unix.Send(fd, b, sendRecvFlags)
}

func recvSocket(fd int, b []byte) (int, error) {
	return unix.Recv(fd, b, 0)
}

func closeSocket(fd int) error {
	return unix.Close(fd)
}

func localSockAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToTCPAddr(sa), nil
}

func peerSockAddr(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToTCPAddr(sa), nil
}
