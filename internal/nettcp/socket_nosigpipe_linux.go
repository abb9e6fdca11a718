//go:build linux

package nettcp

import "golang.org/x/sys/unix"

func platformSendRecvFlags() int { return unix.MSG_NOSIGNAL }

// setNoSigpipe is a no-op on Linux: SIGPIPE suppression is handled
// per-call via MSG_NOSIGNAL in sendSocket (spec §4.4).
func setNoSigpipe(fd int) {}
