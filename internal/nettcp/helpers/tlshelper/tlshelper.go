// Package tlshelper layers TLS onto a nettcp.Conn as an opt-in helper
// (SPEC_FULL.md "Example helpers"), demonstrating the pattern the core
// engine's helper chain exists for: a protocol that must run its own
// handshake, consuming raw bytes itself, before the application ever
// sees Established or Recv.
//
// crypto/tls.Conn's API is blocking, while nettcp's core is not, so
// this helper bridges the two with an in-process net.Pipe: the TLS
// handshake and subsequent record decryption run on a dedicated
// goroutine reading/writing one end of the pipe, while the helper's
// Recv/Send intercepts — which only ever run on the connection's
// single event-loop goroutine — feed the other end and drain whatever
// ciphertext it produced in response.
//
// This is a demonstration fixture, not a hardened transport: decrypted
// application data is only delivered in response to a new raw network
// read event. A TLS record that completes with no further bytes
// arriving on the wire (e.g. a server's last flight folded into the
// same segment as application data, with the client waiting on a
// write instead) will sit buffered until the next read event.
package tlshelper

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/helixnet/tcpengine/internal/nettcp"
)

// Helper is one TLS handshake/record layer attached to a connection.
type Helper struct {
	conn    *nettcp.Conn
	tlsConn *tls.Conn
	netSide net.Conn
	handle  *nettcp.HelperHandle

	established bool
	handshakeCh chan error
	plainCh     chan []byte
}

// Attach wires a TLS helper onto conn and starts the handshake in the
// background. client selects tls.Client vs tls.Server semantics.
func Attach(conn *nettcp.Conn, config *tls.Config, client bool) *Helper {
	appSide, netSide := net.Pipe()

	var tc *tls.Conn
	if client {
		tc = tls.Client(appSide, config)
	} else {
		tc = tls.Server(appSide, config)
	}

	h := &Helper{
		conn:        conn,
		tlsConn:     tc,
		netSide:     netSide,
		handshakeCh: make(chan error, 1),
		plainCh:     make(chan []byte, 16),
	}
	h.handle = conn.RegisterHelper(nettcp.HelperFuncs{
		Establish: h.onEstablish,
		Send:      h.onSend,
		Recv:      h.onRecv,
	})
	go func() { h.handshakeCh <- tc.Handshake() }()
	return h
}

// ConnectionState returns the negotiated TLS state once established.
func (h *Helper) ConnectionState() tls.ConnectionState {
	return h.tlsConn.ConnectionState()
}

// Detach removes the helper from its connection and tears down the
// internal pipe.
func (h *Helper) Detach() {
	h.handle.Deregister()
	_ = h.tlsConn.Close()
}

// onEstablish swallows the raw TCP-level establish event unconditionally:
// the connection isn't really "established" from the application's point
// of view until the TLS handshake finishes, which onRecv drives to
// completion and signals via the mid-stream establish latch.
func (h *Helper) onEstablish(active bool) (bool, error) {
	return true, nil
}

// onSend encrypts application data via the TLS engine and forwards the
// resulting ciphertext to the wire.
func (h *Helper) onSend(buf *nettcp.Buffer) (bool, error) {
	if !h.established {
		return true, nettcp.ErrInvalidArgument
	}
	if _, err := h.tlsConn.Write(buf.Bytes()); err != nil {
		return true, err
	}
	if err := h.pumpCiphertext(); err != nil {
		return true, err
	}
	return true, nil
}

// onRecv feeds incoming ciphertext to the TLS engine, then either
// drives the handshake to completion (flipping the establish latch
// once) or, post-handshake, delivers whatever plaintext the background
// reader produced in response.
func (h *Helper) onRecv(buf *nettcp.Buffer, estab *bool) (bool, error) {
	if _, err := h.netSide.Write(buf.Bytes()); err != nil {
		return true, err
	}

	if !h.established {
		select {
		case err := <-h.handshakeCh:
			if err != nil {
				return true, err
			}
			h.established = true
			*estab = true
			go h.readLoop()
			if err := h.pumpCiphertext(); err != nil {
				return true, err
			}
			return false, nil
		default:
			if err := h.pumpCiphertext(); err != nil {
				return true, err
			}
			return true, nil
		}
	}

	select {
	case plain, ok := <-h.plainCh:
		if !ok {
			return true, nil
		}
		buf.Reset(plain)
		if err := h.pumpCiphertext(); err != nil {
			return true, err
		}
		return false, nil
	default:
		if err := h.pumpCiphertext(); err != nil {
			return true, err
		}
		return true, nil
	}
}

// readLoop runs tls.Conn.Read on its own goroutine — the only place in
// this helper a genuinely blocking call happens — and forwards
// decrypted plaintext to the event-loop goroutine via plainCh.
func (h *Helper) readLoop() {
	defer close(h.plainCh)
	for {
		buf := make([]byte, 32*1024)
		n, err := h.tlsConn.Read(buf)
		if n > 0 {
			h.plainCh <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

// pumpCiphertext drains whatever bytes the TLS engine has queued to
// send on the pipe's network side and forwards them to the real
// socket, bypassing the helper chain (this helper is the one that
// produced them).
func (h *Helper) pumpCiphertext() error {
	buf := make([]byte, 16*1024)
	for {
		_ = h.netSide.SetReadDeadline(time.Now())
		n, err := h.netSide.Read(buf)
		if n > 0 {
			if werr := h.conn.SendBypassHelpers(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			_ = h.netSide.SetReadDeadline(time.Time{})
			return nil
		}
	}
}
