// Package socks5 implements a minimal RFC 1928 CONNECT client as a
// nettcp helper (SPEC_FULL.md "Example helpers"): attach it to a
// connection made to a SOCKS5 proxy, and it drives the proxy
// handshake and CONNECT request itself, only flipping the connection's
// establish latch once the proxy has confirmed the tunnel to the real
// target is open. Everything after that point passes through
// untouched.
//
// No embeddable server-side-capable SOCKS library appears anywhere in
// the example pack (see DESIGN.md), so this is hand-rolled directly
// against the RFC rather than adapted from a dependency — it supports
// only the no-authentication method, with IPv4, IPv6 or domain-name
// target addresses, which covers the common case for an example fixture.
package socks5

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/helixnet/tcpengine/internal/nettcp"
)

const (
	socksVersion5  = 0x05
	methodNoAuth   = 0x00
	cmdConnect     = 0x01
	atypIPv4       = 0x01
	atypDomainName = 0x03
	atypIPv6       = 0x04
	replySucceeded = 0x00
)

type state int

const (
	stateAwaitMethodSelect state = iota
	stateAwaitConnectReply
	stateDone
)

// Helper drives one CONNECT handshake through a SOCKS5 proxy.
type Helper struct {
	conn   *nettcp.Conn
	handle *nettcp.HelperHandle

	targetHost string
	targetPort uint16

	st    state
	rxbuf []byte
}

// Attach registers a SOCKS5 CONNECT helper that will ask the proxy to
// tunnel to target ("host:port") once the raw TCP connection to the
// proxy itself completes.
func Attach(conn *nettcp.Conn, target string) (*Helper, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}

	h := &Helper{conn: conn, targetHost: host, targetPort: uint16(port)}
	h.handle = conn.RegisterHelper(nettcp.HelperFuncs{
		Establish: h.onEstablish,
		Send:      h.onSend,
		Recv:      h.onRecv,
	})
	return h, nil
}

// Detach removes the helper from its connection.
func (h *Helper) Detach() { h.handle.Deregister() }

func (h *Helper) onEstablish(active bool) (bool, error) {
	if h.st == stateDone {
		return false, nil
	}
	greeting := []byte{socksVersion5, 1, methodNoAuth}
	if err := h.conn.SendBypassHelpers(greeting); err != nil {
		return true, err
	}
	return true, nil
}

func (h *Helper) onSend(buf *nettcp.Buffer) (bool, error) {
	if h.st != stateDone {
		return true, nettcp.ErrInvalidArgument
	}
	return false, nil
}

func (h *Helper) onRecv(buf *nettcp.Buffer, estab *bool) (bool, error) {
	if h.st == stateDone {
		return false, nil
	}

	h.rxbuf = append(h.rxbuf, buf.Bytes()...)

	switch h.st {
	case stateAwaitMethodSelect:
		if len(h.rxbuf) < 2 {
			return true, nil
		}
		if h.rxbuf[0] != socksVersion5 || h.rxbuf[1] != methodNoAuth {
			return true, fmt.Errorf("socks5: proxy rejected no-auth method")
		}
		h.rxbuf = h.rxbuf[2:]
		if err := h.sendConnectRequest(); err != nil {
			return true, err
		}
		h.st = stateAwaitConnectReply
		fallthrough

	case stateAwaitConnectReply:
		n, ok, err := parseConnectReply(h.rxbuf)
		if err != nil {
			return true, err
		}
		if !ok {
			return true, nil
		}
		h.rxbuf = h.rxbuf[n:]
		h.st = stateDone
		*estab = true
		return false, nil
	}

	return true, nil
}

func (h *Helper) sendConnectRequest() error {
	req := []byte{socksVersion5, cmdConnect, 0x00}
	if ip := net.ParseIP(h.targetHost); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			req = append(req, atypIPv4)
			req = append(req, v4...)
		} else {
			req = append(req, atypIPv6)
			req = append(req, ip.To16()...)
		}
	} else {
		if len(h.targetHost) > 255 {
			return fmt.Errorf("socks5: target host name too long")
		}
		req = append(req, atypDomainName, byte(len(h.targetHost)))
		req = append(req, h.targetHost...)
	}
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, h.targetPort)
	req = append(req, portBuf...)
	return h.conn.SendBypassHelpers(req)
}

// parseConnectReply reports how many leading bytes of buf the reply
// occupies and whether enough bytes have arrived yet to know that.
func parseConnectReply(buf []byte) (n int, ok bool, err error) {
	if len(buf) < 4 {
		return 0, false, nil
	}
	if buf[0] != socksVersion5 {
		return 0, false, fmt.Errorf("socks5: bad reply version")
	}
	if buf[1] != replySucceeded {
		return 0, false, fmt.Errorf("socks5: connect failed, reply code %d", buf[1])
	}
	var addrLen int
	switch buf[3] {
	case atypIPv4:
		addrLen = net.IPv4len
	case atypIPv6:
		addrLen = net.IPv6len
	case atypDomainName:
		if len(buf) < 5 {
			return 0, false, nil
		}
		addrLen = 1 + int(buf[4])
	default:
		return 0, false, fmt.Errorf("socks5: unknown address type %d", buf[3])
	}
	total := 4 + addrLen + 2
	if len(buf) < total {
		return 0, false, nil
	}
	return total, true, nil
}
