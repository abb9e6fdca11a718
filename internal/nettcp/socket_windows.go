//go:build windows

package nettcp

import (
	"net"
	"unsafe"

	"golang.org/x/sys/windows"
)

func platformSendRecvFlags() int { return 0 }

func newStreamSocket(family int) (int, error) {
	fd, err := windows.Socket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := setNonblockingWindows(fd); err != nil {
		_ = windows.Closesocket(fd)
		return -1, err
	}
	setLingerZero(int(fd))
	return int(fd), nil
}

func setNonblockingWindows(fd windows.Handle) error {
	one := uint32(1)
	return windows.Ioctlsocket(fd, windows.FIONBIO, &one)
}

func setReuseAddr(fd int) error {
	v := int32(1)
	return windows.Setsockopt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR,
		(*byte)(unsafe.Pointer(&v)), 4)
}

// windowsLinger mirrors the kernel's LINGER struct layout (l_onoff,
// l_linger, both u_short) for the zero-linger policy spec §4.1 asks
// every accepted/connected/listening socket to carry.
type windowsLinger struct {
	OnOff  uint16
	Linger uint16
}

func setLingerZero(fd int) {
	l := windowsLinger{OnOff: 1, Linger: 0}
	_ = windows.Setsockopt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_LINGER,
		(*byte)(unsafe.Pointer(&l)), int32(unsafe.Sizeof(l)))
}

func bindSocket(fd int, c candidate) error {
	return windows.Bind(windows.Handle(fd), c.sockaddr)
}

func listenSocket(fd int, backlog int) error {
	return windows.Listen(windows.Handle(fd), backlog)
}

// acceptSocket accepts and gives the new descriptor the same
// non-blocking/zero-linger treatment newStreamSocket gives an actively
// connected one (spec §4.1 step 2).
func acceptSocket(listenFD int) (int, *net.TCPAddr, error) {
	nfd, sa, err := windows.Accept(windows.Handle(listenFD))
	if err != nil {
		return -1, nil, err
	}
	if err := setNonblockingWindows(nfd); err != nil {
		_ = windows.Closesocket(nfd)
		return -1, nil, err
	}
	setLingerZero(int(nfd))
	return int(nfd), sockaddrToTCPAddr(sa), nil
}

func connectSocket(fd int, c candidate) (inProgress bool, err error) {
	err = windows.Connect(windows.Handle(fd), c.sockaddr)
	if err == nil {
		return false, nil
	}
	if err == windows.WSAEWOULDBLOCK {
		return true, nil
	}
	return false, err
}

func isWouldBlock(err error) bool { return err == windows.WSAEWOULDBLOCK }
func isInterrupted(err error) bool { return false }

func socketError(fd int) (int, error) {
	var val int32
	sz := int32(4)
	err := windows.Getsockopt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR,
		(*byte)(unsafe.Pointer(&val)), &sz)
	return int(val), err
}

func writeSocket(fd int, b []byte) (int, error) {
	n, err := windows.Write(windows.Handle(fd), b)
	return n, err
}

func sendSocket(fd int, b []byte) (int, error) {
	return windows.Send(windows.Handle(fd), b, 0)
}

func recvSocket(fd int, b []byte) (int, error) {
	return windows.Recv(windows.Handle(fd), b, 0)
}

func closeSocket(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func localSockAddr(fd int) (*net.TCPAddr, error) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return nil, err
	}
	return sockaddrToTCPAddr(sa), nil
}

func peerSockAddr(fd int) (*net.TCPAddr, error) {
	sa, err := windows.Getpeername(windows.Handle(fd))
	if err != nil {
		return nil, err
	}
	return sockaddrToTCPAddr(sa), nil
}
