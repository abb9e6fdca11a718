package nettcp

import "testing"

func TestSendQueueFIFO(t *testing.T) {
	var q sendQueue
	if !q.empty() {
		t.Fatal("new queue should be empty")
	}

	q.append([]byte("first"))
	q.append([]byte("second"))
	if q.empty() {
		t.Fatal("queue should be non-empty after append")
	}
	if q.len() != 2 {
		t.Fatalf("len() = %d, want 2", q.len())
	}

	head := q.head()
	if string(head.remaining()) != "first" {
		t.Fatalf("head = %q, want %q", head.remaining(), "first")
	}

	head.drained = len(head.data)
	if !head.done() {
		t.Fatal("entry should be done once fully drained")
	}
	q.popHead()

	if string(q.head().remaining()) != "second" {
		t.Fatalf("head after pop = %q, want %q", q.head().remaining(), "second")
	}
}

func TestSendQueueAppendCopies(t *testing.T) {
	var q sendQueue
	b := []byte("mutate me")
	q.append(b)
	b[0] = 'X'
	if q.head().remaining()[0] == 'X' {
		t.Fatal("append should copy, not alias the caller's slice")
	}
}

func TestSendQueueByteLen(t *testing.T) {
	var q sendQueue
	q.append([]byte("abc"))
	q.append([]byte("de"))
	if q.byteLen() != 5 {
		t.Fatalf("byteLen() = %d, want 5", q.byteLen())
	}
	q.head().drained = 2
	if q.byteLen() != 3 {
		t.Fatalf("byteLen() after partial drain = %d, want 3", q.byteLen())
	}
}

func TestSendQueueFlush(t *testing.T) {
	var q sendQueue
	q.append([]byte("a"))
	q.append([]byte("b"))
	q.flush()
	if !q.empty() {
		t.Fatal("flush should empty the queue")
	}
}
