package nettcp

import "sync/atomic"

// Package-level engine metrics (component H, SPEC_FULL.md), adapted
// from the teacher's netstack package TCPMetrics pattern: plain atomic
// counters plus a snapshot function, rather than a full metrics
// registry — appropriate for a package with no metrics dependency of
// its own wired in (see DESIGN.md).
var (
	metricConnectionsEstablished uint64
	metricConnectionsClosed      uint64
	metricConnectionsFailed      uint64
	metricBytesSent              uint64
	metricBytesReceived          uint64
	metricSendQueued             uint64
	metricSendDrained            uint64
	metricAccepted               uint64
	metricRejected               uint64
	metricListenerRecreated      uint64
)

// Metrics returns a snapshot of the engine's lifetime counters. It is
// safe to call from any goroutine.
func Metrics() map[string]uint64 {
	return map[string]uint64{
		"connections_established": atomic.LoadUint64(&metricConnectionsEstablished),
		"connections_closed":      atomic.LoadUint64(&metricConnectionsClosed),
		"connections_failed":      atomic.LoadUint64(&metricConnectionsFailed),
		"bytes_sent":              atomic.LoadUint64(&metricBytesSent),
		"bytes_received":          atomic.LoadUint64(&metricBytesReceived),
		"send_queued":             atomic.LoadUint64(&metricSendQueued),
		"send_drained":            atomic.LoadUint64(&metricSendDrained),
		"accepted":                atomic.LoadUint64(&metricAccepted),
		"rejected":                atomic.LoadUint64(&metricRejected),
		"listener_recreated":      atomic.LoadUint64(&metricListenerRecreated),
	}
}
