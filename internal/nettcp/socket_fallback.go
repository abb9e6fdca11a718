//go:build !unix && !windows

package nettcp

import "net"

func newStreamSocket(family int) (int, error)           { return -1, ErrAddrNotAvailable }
func setReuseAddr(fd int) error                          { return ErrBadDescriptor }
func setLingerZero(fd int)                                {}
func bindSocket(fd int, c candidate) error                { return ErrBadDescriptor }
func listenSocket(fd int, backlog int) error               { return ErrBadDescriptor }
func acceptSocket(listenFD int) (int, *net.TCPAddr, error) { return -1, nil, ErrBadDescriptor }
func connectSocket(fd int, c candidate) (bool, error)       { return false, ErrBadDescriptor }
func isWouldBlock(err error) bool                          { return false }
func isInterrupted(err error) bool                          { return false }
func socketError(fd int) (int, error)                       { return 0, ErrBadDescriptor }
func writeSocket(fd int, b []byte) (int, error)              { return 0, ErrBadDescriptor }
func sendSocket(fd int, b []byte) (int, error)                { return 0, ErrBadDescriptor }
func recvSocket(fd int, b []byte) (int, error)                 { return 0, ErrBadDescriptor }
func closeSocket(fd int) error                                  { return nil }
func localSockAddr(fd int) (*net.TCPAddr, error)                 { return nil, ErrBadDescriptor }
func peerSockAddr(fd int) (*net.TCPAddr, error)                   { return nil, ErrBadDescriptor }
