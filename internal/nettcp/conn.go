package nettcp

import (
	"net"
	"sync/atomic"
)

const defaultRecvChunkSize = 8192

// Handlers bundles a connection's optional application callbacks (spec
// §3): OnEstablished fires at most once, strictly before the first
// OnRecv (spec §8); OnRecv delivers one buffer per read event, never
// coalesced across events (spec §9 open question, resolved in favor of
// preserving short reads — applications rely on the boundary); OnClosed
// fires at most once, after which no other handler for the connection
// fires.
type Handlers struct {
	OnEstablished func()
	OnRecv        func(buf *Buffer)
	OnClosed      func(err error)
}

// Conn is a connected, non-blocking byte-stream endpoint (component E,
// spec §2/§3): it owns a descriptor, an outbound send queue, a helper
// chain, and the per-connection callbacks, and drives the I/O state
// machine described in spec §4.3 from reactor events.
//
// Conn is not safe for concurrent use. Every exported method, and every
// handler callback, must run on the single goroutine that drives the
// owning reactor — the cooperative, single-threaded model spec §5
// describes ("no internal worker threads, no mutexes, no atomic
// refcounts").
type Conn struct {
	fd     int
	r      reactor
	active bool

	connected   bool
	tcpUp       bool // connect-complete edge handled; reads flow even while helpers are still establishing
	closedFired bool

	queue   sendQueue
	helpers helperChain

	handlers    Handlers
	onDrained   func()
	rxChunkSize int
}

func newConn(fd int, r reactor, active bool, h Handlers) *Conn {
	return &Conn{
		fd:          fd,
		r:           r,
		active:      active,
		handlers:    h,
		rxChunkSize: defaultRecvChunkSize,
	}
}

// Allocate resolves peer to candidate (family, address) tuples and
// creates a non-blocking stream socket for the first one that
// succeeds, matching spec §4.2's allocate() exactly: active=false,
// connected=false, empty queue and helper chain, default receive
// chunk size. The returned Conn is not yet connected; call Connect
// (optionally after BindLocal) to start the handshake.
func Allocate(peer string, h Handlers) (*Conn, error) {
	r, err := newReactor()
	if err != nil {
		return nil, err
	}
	return allocateWithReactor(r, peer, h)
}

func allocateWithReactor(r reactor, peer string, h Handlers) (*Conn, error) {
	candidates, err := resolvePeer(peer)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, c := range candidates {
		fd, err := newStreamSocket(c.family)
		if err != nil {
			lastErr = err
			continue
		}
		return newConn(fd, r, false, h), nil
	}
	if lastErr == nil {
		lastErr = ErrAddrNotAvailable
	}
	return nil, lastErr
}

// BindLocal binds the connection's socket to a local address ahead of
// Connect (spec §4.2 bind_local), enabling address reuse first.
func (c *Conn) BindLocal(local *net.TCPAddr) error {
	if c.fd < 0 {
		return ErrBadDescriptor
	}
	_ = setReuseAddr(c.fd)
	candidates, err := resolveCandidates(local)
	if err != nil {
		return err
	}
	var lastErr error
	for _, cand := range candidates {
		if err := bindSocket(c.fd, cand); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = ErrAddrNotAvailable
	}
	return lastErr
}

// Connect initiates a non-blocking connect to peer (spec §4.2). It
// returns success if the connect completes immediately or if it enters
// the normal in-progress state — both arm readable+writable+exception
// interest and return nil; completion (or failure) arrives via the
// first I/O event, handled by onEvent. Every resolved candidate is
// tried with the connection's single allocated descriptor until one
// returns success or in-progress (matching the original tcp_conn_connect
// candidate loop, see SPEC_FULL.md).
func (c *Conn) Connect(peer string) error {
	if c.fd < 0 {
		return ErrBadDescriptor
	}
	c.active = true

	candidates, err := resolvePeer(peer)
	if err != nil {
		return err
	}

	var lastErr error
	for _, cand := range candidates {
	retry:
		inProgress, err := connectSocket(c.fd, cand)
		if err == nil {
			return c.armConnecting()
		}
		if inProgress {
			return c.armConnecting()
		}
		if isInterrupted(err) {
			goto retry
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrAddrNotAvailable
	}
	return lastErr
}

func (c *Conn) armConnecting() error {
	return c.r.Register(c.fd, Readable|Writable|Exception, c.onEvent)
}

// acceptConn promotes a listening socket's pending descriptor into a
// connection (spec §4.1/§4.3: "a passive connection skips Connecting
// and begins in a state equivalent to TCP up, helpers pending").
func acceptConn(fd int, r reactor, h Handlers) (*Conn, error) {
	c := newConn(fd, r, false, h)
	if err := r.Register(fd, Readable|Writable|Exception, c.onEvent); err != nil {
		_ = closeSocket(fd)
		return nil, err
	}
	return c, nil
}

// RegisterHelper appends a new helper entry with any subset of
// {Establish, Send, Recv} handlers (spec §4.5). The returned handle can
// be used to deregister it later; destruction is safe at any time
// except from inside that entry's own callback.
func (c *Conn) RegisterHelper(fns HelperFuncs) *HelperHandle {
	e := c.helpers.register(fns, c.fd)
	return &HelperHandle{conn: c, entry: e}
}

func (c *Conn) removeHelper(e *helperEntry) {
	c.helpers.remove(e)
}

// SetDrainHandler sets the one-shot-after-empty drain notifier (spec
// §4.4 Glossary). If the queue is already empty when this is called,
// write interest is re-armed immediately so the handler fires on the
// very next writable edge even though nothing is queued (see
// SPEC_FULL.md's supplement from the original tcp_set_send).
func (c *Conn) SetDrainHandler(cb func()) {
	c.onDrained = cb
	if c.fd < 0 || !c.connected {
		return
	}
	if c.queue.empty() && cb != nil {
		_ = c.r.Register(c.fd, Readable|Writable, c.onEvent)
	}
}

// SetRecvChunkSize sets the size of the buffer allocated for each
// receive event (spec §6 set_recv_chunk_size); default 8192.
func (c *Conn) SetRecvChunkSize(n int) {
	if n > 0 {
		c.rxChunkSize = n
	}
}

// FD returns the connection's raw descriptor, or -1 once destroyed.
func (c *Conn) FD() int { return c.fd }

// SetHandlers replaces the connection's application callbacks. This
// exists mainly for passive connections: a Listener's OnIncoming
// callback receives the Conn only after Accept constructs it, so
// callbacks that need to close over the Conn itself (an echo handler
// calling conn.Send from inside its own OnRecv, say) must be attached
// after the fact.
func (c *Conn) SetHandlers(h Handlers) {
	c.handlers = h
}

// LocalAddr queries the kernel for the connection's bound local address.
func (c *Conn) LocalAddr() (*net.TCPAddr, error) {
	if c.fd < 0 {
		return nil, ErrBadDescriptor
	}
	return localSockAddr(c.fd)
}

// PeerAddr queries the kernel for the connection's remote peer address.
func (c *Conn) PeerAddr() (*net.TCPAddr, error) {
	if c.fd < 0 {
		return nil, ErrBadDescriptor
	}
	return peerSockAddr(c.fd)
}

// Send implements spec §4.4. It fails ErrBadDescriptor if the
// connection has no descriptor and ErrInvalidArgument if buf is empty.
// It walks the helper chain
// tail-to-head; any helper may mutate buf, consume it (handled=true,
// success returned without touching the socket or queue), or set an
// error (returned to the caller without closing the connection). If
// nothing consumed it, a non-blocking write is attempted, with any
// unwritten suffix enqueued and write interest armed.
func (c *Conn) Send(buf []byte) error {
	if c.fd < 0 {
		return ErrBadDescriptor
	}
	if len(buf) == 0 {
		return ErrInvalidArgument
	}

	b := NewBuffer(buf)
	for _, e := range c.helpers.reverse() {
		handled, err := e.fns.send(b)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return c.rawWrite(b.Bytes())
}

// SendBypassHelpers writes raw bytes directly to the socket (or queues
// them), skipping the helper chain entirely. It exists for a helper's
// own use (spec §4.5's Send hook documents per-helper mutate/consume
// semantics for *application* data; a helper that generates its own
// wire bytes — a TLS or compression layer re-emitting its encoded
// output — needs a way to reach the socket without re-entering its own
// Send intercept). Applications should use Send instead.
func (c *Conn) SendBypassHelpers(buf []byte) error {
	if c.fd < 0 {
		return ErrBadDescriptor
	}
	if len(buf) == 0 {
		return ErrInvalidArgument
	}
	return c.rawWrite(buf)
}

func (c *Conn) rawWrite(buf []byte) error {
	if !c.queue.empty() {
		atomic.AddUint64(&metricSendQueued, 1)
		c.queue.append(buf)
		return c.rearm()
	}

	n, err := sendSocket(c.fd, buf)
	if err != nil {
		if isWouldBlock(err) {
			atomic.AddUint64(&metricSendQueued, 1)
			c.queue.append(buf)
			return c.rearm()
		}
		return err
	}
	atomic.AddUint64(&metricBytesSent, uint64(n))
	if n < len(buf) {
		atomic.AddUint64(&metricSendQueued, 1)
		c.queue.append(buf[n:])
		return c.rearm()
	}
	return nil
}

// currentInterest computes the poller mask the connection should be
// registered with right now, per spec §3's invariants: not yet
// connected wants read+write+exception; connected wants read always,
// plus write only while the send queue is non-empty.
func (c *Conn) currentInterest() EventMask {
	if !c.connected {
		return Readable | Writable | Exception
	}
	m := Readable
	if !c.queue.empty() {
		m |= Writable
	}
	return m
}

func (c *Conn) rearm() error {
	if c.fd < 0 {
		return ErrBadDescriptor
	}
	return c.r.Register(c.fd, c.currentInterest(), c.onEvent)
}

// onEvent is the single combined I/O callback every reactor routes
// events for this descriptor through (spec §4.3, §9 — "one callback
// that demultiplexes a bitmask"). It checks SO_ERROR first on every
// event regardless of which bits fired, exactly as the exception edge
// requires.
func (c *Conn) onEvent(fd int, events EventMask) {
	if c.closedFired || c.fd < 0 {
		return
	}

	if errno, qerr := socketError(c.fd); qerr == nil && errno != 0 {
		c.closeWithErrno(errno)
		return
	}

	if events.has(Writable) {
		if !c.connected {
			c.handleConnectComplete()
			return
		}
		if err := c.drainStep(); err != nil {
			c.close(err)
			return
		}
		if !events.has(Readable) {
			return
		}
	}

	if events.has(Readable) && c.tcpUp {
		c.handleReadable()
	}
}

// handleConnectComplete runs the writable-edge-while-not-connected path
// (spec §4.3): re-arm readable-only, walk helper Establish handlers
// head-to-tail, then fire OnEstablished and flip connected.
func (c *Conn) handleConnectComplete() {
	if err := c.r.Register(c.fd, Readable, c.onEvent); err != nil {
		c.close(err)
		return
	}
	c.tcpUp = true
	for _, e := range c.helpers.forward() {
		handled, err := e.fns.establish(c.active)
		if err != nil {
			c.close(err)
			return
		}
		if handled {
			return
		}
	}
	if c.handlers.OnEstablished != nil {
		c.handlers.OnEstablished()
	}
	c.connected = true
	atomic.AddUint64(&metricConnectionsEstablished, 1)
}

// drainStep performs one drain step of the send queue (spec §4.4): a
// single non-blocking write of the queue head's remaining bytes, then
// (if the queue is now empty) the one-shot drain notification and a
// pare-back to readable-only interest.
func (c *Conn) drainStep() error {
	if e := c.queue.head(); e != nil {
		n, err := sendSocket(c.fd, e.remaining())
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
		atomic.AddUint64(&metricBytesSent, uint64(n))
		e.drained += n
		if e.done() {
			c.queue.popHead()
		}
	}
	if c.queue.empty() {
		atomic.AddUint64(&metricSendDrained, 1)
		if c.onDrained != nil {
			c.onDrained()
		}
		return c.rearm()
	}
	return nil
}

// handleReadable runs the readable-edge path (spec §4.3): allocate a
// fresh chunk-sized buffer, read once, and walk the helper chain
// forward, tracking the mid-stream establish latch.
func (c *Conn) handleReadable() {
	raw := defaultBufferPool.get(c.rxChunkSize)
	n, err := recvSocket(c.fd, raw)
	if err != nil {
		if isWouldBlock(err) {
			defaultBufferPool.put(raw)
			return
		}
		defaultBufferPool.put(raw)
		c.close(err)
		return
	}
	if n == 0 {
		defaultBufferPool.put(raw)
		c.close(nil)
		return
	}

	atomic.AddUint64(&metricBytesReceived, uint64(n))
	buf := NewBuffer(raw[:n])
	estab := false
	for _, e := range c.helpers.forward() {
		var handled bool
		var herr error
		if !estab {
			handled, herr = e.fns.recv(buf, &estab)
		} else {
			handled, herr = e.fns.establish(c.active)
		}
		if herr != nil {
			defaultBufferPool.put(raw)
			c.close(herr)
			return
		}
		if handled {
			// Per spec §9's open question on the handled+latch overlap:
			// a true handled return wins; OnEstablished is not invoked
			// for this event even if estab also flipped true.
			defaultBufferPool.put(raw)
			return
		}
	}

	if !estab {
		if c.handlers.OnRecv != nil {
			c.handlers.OnRecv(buf)
		}
	} else {
		if c.handlers.OnEstablished != nil {
			c.handlers.OnEstablished()
		}
		c.connected = true
	}
	defaultBufferPool.put(raw)
}

func (c *Conn) closeWithErrno(errno int) {
	c.close(errnoError(errno))
}

// close implements spec §4.6: cancel the poller registration, then
// invoke OnClosed if set, at most once. The descriptor itself is left
// open until Destroy so callers that want to inspect it post-close
// still can.
func (c *Conn) close(err error) {
	if c.closedFired {
		return
	}
	c.closedFired = true
	if c.fd >= 0 {
		_ = c.r.Unregister(c.fd)
	}
	if err != nil {
		atomic.AddUint64(&metricConnectionsFailed, 1)
	}
	atomic.AddUint64(&metricConnectionsClosed, 1)
	if c.handlers.OnClosed != nil {
		c.handlers.OnClosed(err)
	}
}

// Destroy flushes the helper chain and send queue and closes the
// descriptor. It is idempotent.
func (c *Conn) Destroy() {
	if c.fd < 0 {
		return
	}
	if !c.closedFired {
		c.close(nil)
	}
	_ = closeSocket(c.fd)
	c.fd = -1
	c.helpers.flush()
	c.queue.flush()
}
