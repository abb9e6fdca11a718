//go:build unix && !linux && !darwin && !freebsd && !netbsd && !openbsd

package nettcp

// platformSendRecvFlags/setNoSigpipe for the remaining unix-family
// platforms (Solaris, AIX, Illumos, ...): neither MSG_NOSIGNAL nor
// SO_NOSIGPIPE is assumed available here, so SIGPIPE suppression is
// left to the caller (e.g. ignoring SIGPIPE at the process level),
// matching how re/tcp.c falls back to flags=0 when MSG_NOSIGNAL is
// undefined for the target platform.
func platformSendRecvFlags() int { return 0 }
func setNoSigpipe(fd int)        {}
