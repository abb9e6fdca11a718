package nettcp

// HelperEstablishFunc observes or overrides connection establishment.
// active is true for the side that initiated the connect. Returning
// handled=true, or setting err non-nil, short-circuits the walk (spec
// §4.3): on a non-nil err the connection is closed with it; on a true
// handled with no error, the event simply returns (the helper is
// responsible for re-driving establishment later, e.g. after its own
// handshake completes).
type HelperEstablishFunc func(active bool) (handled bool, err error)

// HelperSendFunc intercepts outbound bytes. It may mutate buf in place
// (advance its cursor, rewrite its contents) before returning it. A
// true handled return means buf was fully consumed by this helper (for
// instance written to a side channel) and must not reach the socket or
// any earlier helper in the chain; err is returned to the send() caller
// without closing the connection (spec §4.4/§7).
type HelperSendFunc func(buf *Buffer) (handled bool, err error)

// HelperRecvFunc intercepts inbound bytes. estab is the per-event
// establish latch (spec §4.3, §4.5): setting it to true promotes the
// stream from "receiving bytes" to "established" for every helper
// later in this same walk, which then receive an establish call
// instead of a recv call for this event. A true handled return
// terminates the walk for this event.
type HelperRecvFunc func(buf *Buffer, estab *bool) (handled bool, err error)

// HelperFuncs is the set of optional callbacks a single helper entry
// may provide (component D, spec §3). Any nil field behaves as a
// no-op returning handled=false, err=nil — the default handlers in
// re/tcp.c's helper_estab_handler/helper_send_handler/helper_recv_handler.
type HelperFuncs struct {
	Establish HelperEstablishFunc
	Send      HelperSendFunc
	Recv      HelperRecvFunc
}

func (h HelperFuncs) establish(active bool) (bool, error) {
	if h.Establish == nil {
		return false, nil
	}
	return h.Establish(active)
}

func (h HelperFuncs) send(buf *Buffer) (bool, error) {
	if h.Send == nil {
		return false, nil
	}
	return h.Send(buf)
}

func (h HelperFuncs) recv(buf *Buffer, estab *bool) (bool, error) {
	if h.Recv == nil {
		return false, nil
	}
	return h.Recv(buf, estab)
}

// helperEntry is one link in a connection's ordered helper chain,
// in stable insertion order (spec §3).
type helperEntry struct {
	fns HelperFuncs
	fd  int // snapshot of the descriptor at registration time, for helpers that log/measure it
}

// HelperHandle is returned by Conn.RegisterHelper; destroying it
// removes the helper from the chain. It is safe to deregister at any
// time except from inside that same entry's own callback (spec §4.5,
// §5) — the engine does not special-case that misuse; it is a caller
// bug exactly as in the source this was modeled on.
type HelperHandle struct {
	conn  *Conn
	entry *helperEntry
}

// FD returns the descriptor the connection had at the time this helper
// was registered (spec §4.6's original tcp_register_helper out-param).
func (h *HelperHandle) FD() int { return h.entry.fd }

// Deregister removes the helper from its connection's chain.
func (h *HelperHandle) Deregister() {
	if h == nil || h.conn == nil {
		return
	}
	h.conn.removeHelper(h.entry)
	h.conn = nil
}

// helperChain is the ordered, stable-insertion-order sequence of
// helper entries a connection owns (spec §2 component D, §3).
type helperChain struct {
	entries []*helperEntry
}

func (c *helperChain) register(fns HelperFuncs, fd int) *helperEntry {
	e := &helperEntry{fns: fns, fd: fd}
	c.entries = append(c.entries, e)
	return e
}

func (c *helperChain) remove(e *helperEntry) {
	for i, cur := range c.entries {
		if cur == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

func (c *helperChain) flush() {
	c.entries = nil
}

// forward returns entries head-to-tail: the order recv and establish
// walks use (spec §4.5 — lowest layer sees raw bytes first).
func (c *helperChain) forward() []*helperEntry {
	return c.entries
}

// reverse returns entries tail-to-head: the order send walks use (spec
// §4.4/§4.5 — an application-level send traverses from high to low).
func (c *helperChain) reverse() []*helperEntry {
	n := len(c.entries)
	out := make([]*helperEntry, n)
	for i, e := range c.entries {
		out[n-1-i] = e
	}
	return out
}
