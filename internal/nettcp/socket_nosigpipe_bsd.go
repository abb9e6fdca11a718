//go:build darwin || freebsd || netbsd || openbsd

package nettcp

import "golang.org/x/sys/unix"

func platformSendRecvFlags() int { return 0 }

// setNoSigpipe sets SO_NOSIGPIPE once at socket-creation time: BSD and
// Darwin have no MSG_NOSIGNAL send flag, so SIGPIPE suppression (spec
// §4.4) has to happen at the socket-option level instead.
func setNoSigpipe(fd int) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
