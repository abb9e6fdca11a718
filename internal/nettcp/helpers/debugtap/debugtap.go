// Package debugtap provides a helper that logs byte counts for every
// send and receive on a connection without ever consuming them
// (SPEC_FULL.md "Example helpers") — a minimal stand-in for the kind
// of observability tap the teacher's own runtime packages build with
// the standard log package.
package debugtap

import (
	"log"

	"github.com/helixnet/tcpengine/internal/nettcp"
)

// Attach registers a logging tap on conn under the given label. It
// never returns handled=true and never mutates the buffers it sees, so
// it is always safe to add regardless of where in the chain it ends
// up relative to other helpers.
func Attach(conn *nettcp.Conn, label string) *nettcp.HelperHandle {
	return conn.RegisterHelper(nettcp.HelperFuncs{
		Send: func(buf *nettcp.Buffer) (bool, error) {
			log.Printf("nettcp debugtap[%s]: send %d bytes", label, buf.Len())
			return false, nil
		},
		Recv: func(buf *nettcp.Buffer, estab *bool) (bool, error) {
			log.Printf("nettcp debugtap[%s]: recv %d bytes", label, buf.Len())
			return false, nil
		},
	})
}
