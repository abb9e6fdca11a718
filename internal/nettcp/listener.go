package nettcp

import (
	"net"
	"sync/atomic"
)

const defaultBacklog = 128

// OnIncomingFunc is invoked synchronously for every pending inbound
// connection (spec §4.1): the callback must call Accept or Reject on
// the supplied PendingAccept before returning — exactly one of the
// two, exactly once.
type OnIncomingFunc func(peer *net.TCPAddr, pending *PendingAccept)

// Listener is a bound, listening socket (component F, spec §2/§4.1): it
// owns exactly one descriptor, which is registered for readable
// interest only, and hands each pending inbound descriptor to the
// application's OnIncoming callback to accept or reject.
//
// Listener is not safe for concurrent use; see Conn's doc comment for
// the single-goroutine model this package assumes throughout.
type Listener struct {
	fd         int
	r          reactor
	onIncoming OnIncomingFunc

	// iosRecreateOnAccept is set by the ios build to model the
	// original's TARGET_OS_IPHONE quirk (SPEC_FULL.md "Configuration"):
	// iOS backgrounding can leave a listening socket permanently stuck
	// returning EAGAIN from accept() even though the reactor keeps
	// reporting it readable. When set, a readable event whose first
	// accept returns EAGAIN is treated as "this listener is stale" and
	// the socket is recreated in place, bound to the same local address.
	iosRecreateOnAccept bool
}

// Listen creates, binds, and starts listening on local (spec §4.1's
// create()+bind()+listen() sequence collapsed into one call, matching
// the way the teacher's own server constructors work). A nil IP binds
// to the wildcard address.
func Listen(local *net.TCPAddr, onIncoming OnIncomingFunc) (*Listener, error) {
	r, err := newReactor()
	if err != nil {
		return nil, err
	}
	return listenWithReactor(r, local, onIncoming)
}

func listenWithReactor(r reactor, local *net.TCPAddr, onIncoming OnIncomingFunc) (*Listener, error) {
	ln := &Listener{r: r, onIncoming: onIncoming, iosRecreateOnAccept: platformRecreateOnAcceptQuirk()}
	if err := ln.open(local); err != nil {
		return nil, err
	}
	if err := r.Register(ln.fd, Readable, ln.onEvent); err != nil {
		_ = closeSocket(ln.fd)
		return nil, err
	}
	return ln, nil
}

func (ln *Listener) open(local *net.TCPAddr) error {
	candidates, err := resolveCandidates(local)
	if err != nil {
		return err
	}
	var lastErr error
	for _, c := range candidates {
		fd, err := newStreamSocket(c.family)
		if err != nil {
			lastErr = err
			continue
		}
		if err := setReuseAddr(fd); err != nil {
			_ = closeSocket(fd)
			lastErr = err
			continue
		}
		if err := bindSocket(fd, c); err != nil {
			_ = closeSocket(fd)
			lastErr = err
			continue
		}
		if err := listenSocket(fd, defaultBacklog); err != nil {
			_ = closeSocket(fd)
			lastErr = err
			continue
		}
		ln.fd = fd
		return nil
	}
	if lastErr == nil {
		lastErr = ErrAddrNotAvailable
	}
	return lastErr
}

// LocalAddr queries the kernel for the bound local address.
func (ln *Listener) LocalAddr() (*net.TCPAddr, error) {
	if ln.fd < 0 {
		return nil, ErrBadDescriptor
	}
	return localSockAddr(ln.fd)
}

// FD returns the listening socket's raw descriptor, or -1 once destroyed.
func (ln *Listener) FD() int { return ln.fd }

// Destroy stops listening and closes the descriptor. Idempotent.
func (ln *Listener) Destroy() {
	if ln.fd < 0 {
		return
	}
	_ = ln.r.Unregister(ln.fd)
	_ = closeSocket(ln.fd)
	ln.fd = -1
}

// onEvent handles a readable edge on the listening socket (spec §4.1):
// accept a pending descriptor and hand it to OnIncoming for a
// synchronous accept/reject decision. It loops until accept would
// block, draining every pending connection the kernel is currently
// holding within this one event.
func (ln *Listener) onEvent(fd int, events EventMask) {
	accepted := false
	for {
		cfd, peer, err := acceptSocket(ln.fd)
		if err != nil {
			if isWouldBlock(err) {
				if ln.iosRecreateOnAccept && !accepted {
					ln.recreateStaleListener()
				}
				return
			}
			if isInterrupted(err) {
				continue
			}
			return
		}
		accepted = true

		p := &PendingAccept{ln: ln, fd: cfd}
		if ln.onIncoming != nil {
			ln.onIncoming(peer, p)
		}
		if !p.decided {
			// Caller failed to decide; treat as reject to avoid leaking
			// the descriptor (spec §4.1 requires exactly one decision,
			// but a leak would be worse than a conservative default).
			p.Reject()
		}
	}
}

// recreateStaleListener rebinds the listening socket in place, used
// only on the ios build, where the accept-stuck-at-EAGAIN quirk is
// compiled in (see SPEC_FULL.md). The local address is re-read from
// the live descriptor before it is torn down so the replacement binds
// to the same place.
func (ln *Listener) recreateStaleListener() {
	local, err := localSockAddr(ln.fd)
	if err != nil {
		return
	}
	old := ln.fd
	_ = ln.r.Unregister(old)
	_ = closeSocket(old)
	ln.fd = -1
	if err := ln.open(local); err != nil {
		return
	}
	atomic.AddUint64(&metricListenerRecreated, 1)
	_ = ln.r.Register(ln.fd, Readable, ln.onEvent)
}

// PendingAccept represents one not-yet-decided inbound descriptor
// (spec §4.1's accept()/reject() pair). Exactly one of Accept or
// Reject must be called from within the OnIncoming callback.
type PendingAccept struct {
	ln      *Listener
	fd      int
	decided bool
}

// Accept promotes the pending descriptor into a Conn: a passive
// connection, active=false, connected=false, beginning its life with
// its helper chain about to walk on the very first I/O event exactly
// as an active connection's does post-connect (spec §4.1/§4.3).
func (p *PendingAccept) Accept(h Handlers) (*Conn, error) {
	if p.decided {
		return nil, ErrInvalidArgument
	}
	p.decided = true
	atomic.AddUint64(&metricAccepted, 1)
	return acceptConn(p.fd, p.ln.r, h)
}

// Reject closes the pending descriptor without ever constructing a Conn.
func (p *PendingAccept) Reject() {
	if p.decided {
		return
	}
	p.decided = true
	atomic.AddUint64(&metricRejected, 1)
	_ = closeSocket(p.fd)
}
