package nettcp

import (
	"sort"
	"sync"
)

// Buffer is a growable byte region with independent read and write
// cursors (component B, spec §2/§3) — the Go analogue of the original
// re library's struct mbuf. pos marks the next byte a reader will
// consume; end marks the end of valid data. Helpers transform the
// buffer in place by advancing pos (Advance, consuming a prefix) or by
// replacing its contents outright (Reset).
type Buffer struct {
	buf []byte
	pos int
	end int
}

// NewBuffer wraps an existing slice as a buffer whose valid data spans
// the whole slice (pos=0, end=len(b)).
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b, pos: 0, end: len(b)}
}

// Bytes returns the unread portion of the buffer: buf[pos:end].
func (b *Buffer) Bytes() []byte { return b.buf[b.pos:b.end] }

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return b.end - b.pos }

// Advance consumes n bytes from the front of the unread region. It is
// a no-op clamp if n exceeds Len.
func (b *Buffer) Advance(n int) {
	b.pos += n
	if b.pos > b.end {
		b.pos = b.end
	}
}

// Reset discards prior contents and holds exactly data, matching
// spec §4.3 step 3 ("let the buffer hold exactly the bytes read").
func (b *Buffer) Reset(data []byte) {
	b.buf = data
	b.pos = 0
	b.end = len(data)
}

// bufferPool provides size-bucketed reusable receive buffers, adapted
// from the teacher's internal/runtime/asyncio/buffer_pool.go BytePool:
// same bucketed sync.Pool design, repurposed here specifically to back
// Conn's per-event receive allocation (spec §4.3 step 1, "allocate
// a fresh buffer of the configured receive chunk size") instead of a
// generic net.Conn I/O buffer.
type bufferPool struct {
	buckets []pbucket
}

type pbucket struct {
	size int
	pool sync.Pool
}

var defaultBufferPool = newBufferPool([]int{1024, 2048, 4096, 8192, 16384, 32768, 65536})

func newBufferPool(sizes []int) *bufferPool {
	bs := append([]int(nil), sizes...)
	sort.Ints(bs)
	buckets := make([]pbucket, len(bs))
	for i, sz := range bs {
		sz := sz
		buckets[i] = pbucket{size: sz, pool: sync.Pool{New: func() any { return make([]byte, sz) }}}
	}
	return &bufferPool{buckets: buckets}
}

func (p *bufferPool) get(n int) []byte {
	idx := sort.Search(len(p.buckets), func(i int) bool { return p.buckets[i].size >= n })
	if idx >= len(p.buckets) {
		return make([]byte, n)
	}
	buf := p.buckets[idx].pool.Get().([]byte)
	return buf[:n]
}

func (p *bufferPool) put(buf []byte) {
	capn := cap(buf)
	idx := sort.Search(len(p.buckets), func(i int) bool { return p.buckets[i].size >= capn })
	if idx >= len(p.buckets) || p.buckets[idx].size != capn {
		return
	}
	p.buckets[idx].pool.Put(buf[:capn])
}
