package nettcp

// sendQueueEntry owns one pending byte buffer plus the number of bytes
// already drained from it (component C, spec §3). An entry's drained
// count never exceeds its buffer length; once it reaches it, the entry
// is destroyed (spec §3 invariant).
type sendQueueEntry struct {
	data    []byte
	drained int
}

func (e *sendQueueEntry) remaining() []byte { return e.data[e.drained:] }
func (e *sendQueueEntry) done() bool        { return e.drained >= len(e.data) }

// sendQueue is the ordered, FIFO outbound queue a connection buffers
// data into when the kernel would not accept it immediately (spec
// §3/§4.4). It owns copies of the bytes it holds, since the caller's
// buffer reverts to caller ownership as soon as send() returns (spec
// §5).
type sendQueue struct {
	entries []*sendQueueEntry
}

func (q *sendQueue) empty() bool { return len(q.entries) == 0 }

func (q *sendQueue) len() int { return len(q.entries) }

// byteLen returns the total undrained bytes across all entries —
// useful for diagnostics and tests, not consulted by the state machine.
func (q *sendQueue) byteLen() int {
	n := 0
	for _, e := range q.entries {
		n += len(e.remaining())
	}
	return n
}

// append copies b and appends it as a new entry, preserving FIFO order
// (spec §4.4: "the remaining bytes are appended to the queue").
func (q *sendQueue) append(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	q.entries = append(q.entries, &sendQueueEntry{data: cp})
}

// head returns the first entry, or nil if the queue is empty.
func (q *sendQueue) head() *sendQueueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// popHead removes the first entry (called once it is fully drained).
func (q *sendQueue) popHead() {
	if len(q.entries) == 0 {
		return
	}
	q.entries[0] = nil
	q.entries = q.entries[1:]
}

// flush discards all entries (called on connection destruction, spec §4.6).
func (q *sendQueue) flush() {
	q.entries = nil
}
